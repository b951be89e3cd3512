package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Maharab24/Bottle-Collection/pkg/database"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

// Slot stores the cart in a single JSON file. Saves write a temp file in the
// same directory and rename it over the target, so readers in other
// processes never observe a partial write.
type Slot struct {
	key  string
	path string

	mu       sync.RWMutex
	onSave   []func(data []byte)
	fileMode os.FileMode
}

// NewSlot creates a slot backed by path, creating its parent directory.
func NewSlot(key, path string) (*Slot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve slot path %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &Slot{key: key, path: abs, fileMode: 0o644}, nil
}

func (s *Slot) Key() string { return s.key }

// Path returns the absolute path of the slot file.
func (s *Slot) Path() string { return s.path }

// OnSave registers fn to be called with the bytes of every save, before the
// file becomes visible to other processes.
func (s *Slot) OnSave(fn func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSave = append(s.onSave, fn)
}

func (s *Slot) Load(ctx context.Context) (data []byte, err error) {
	_, end := database.TraceQuery(ctx, "file", "LoadSlot", s.path)
	defer func() { end(err) }()

	data, err = os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("cart slot", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("read slot file: %w", err)
	}
	return data, nil
}

func (s *Slot) Save(ctx context.Context, data []byte) (err error) {
	_, end := database.TraceQuery(ctx, "file", "SaveSlot", s.path)
	defer func() { end(err) }()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp slot file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp slot file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp slot file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp slot file: %w", err)
	}
	if err = os.Chmod(tmpName, s.fileMode); err != nil {
		return fmt.Errorf("chmod temp slot file: %w", err)
	}

	s.mu.RLock()
	hooks := slices.Clone(s.onSave)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(data)
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace slot file: %w", err)
	}
	return nil
}

// Ping checks that the slot directory is still accessible.
func (s *Slot) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("stat slot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("slot directory %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

func (s *Slot) Close() error { return nil }
