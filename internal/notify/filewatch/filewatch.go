// Package filewatch turns modifications of a file-backed cart slot made by
// other processes into remote change notices.
package filewatch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Maharab24/Bottle-Collection/internal/notify"
)

// SavingSlot is the part of the file slot the watcher needs.
type SavingSlot interface {
	Path() string
	OnSave(fn func(data []byte))
}

// Transport watches the slot file's directory. The filesystem itself carries
// the notice, so Announce is a no-op. Origins are unknown on this path; the
// first modification after a save whose content hash matches that save is
// treated as this process's own write and dropped.
type Transport struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	ownHash  [sha256.Size]byte
	seenHash [sha256.Size]byte
	hasOwn   bool
	hasSeen  bool

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a watcher transport for slot.
func New(slot SavingSlot, logger *slog.Logger) *Transport {
	t := &Transport{
		path:   slot.Path(),
		logger: logger.With(slog.String("transport", "file")),
		ready:  make(chan struct{}),
	}
	slot.OnSave(t.rememberOwn)
	return t
}

func (t *Transport) rememberOwn(data []byte) {
	h := sha256.Sum256(data)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ownHash, t.hasOwn = h, true
}

// Ready is closed once Listen has its watch in place.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

func (t *Transport) Announce(context.Context, notify.Change) error { return nil }

func (t *Transport) Listen(ctx context.Context, fn notify.Listener) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Saves replace the file by rename, so the directory is watched rather
	// than the file itself.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		return fmt.Errorf("watch slot directory: %w", err)
	}
	t.readyOnce.Do(func() { close(t.ready) })
	t.logger.Info("watching cart slot file", slog.String("path", t.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != t.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if t.changedByOther() {
				fn(notify.Change{Source: notify.SourceRemote, At: time.Now()})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

// changedByOther reads the slot file and reports whether its content is
// new and not this process's own last save.
func (t *Transport) changedByOther() bool {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("read changed slot file", slog.String("error", err.Error()))
		}
		return false
	}
	h := sha256.Sum256(data)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasSeen && h == t.seenHash {
		return false
	}
	t.seenHash, t.hasSeen = h, true

	// The own-save marker matches once. Any other content retires it, so a
	// later write by someone else that restores the same bytes is delivered.
	own := t.hasOwn && h == t.ownHash
	t.hasOwn = false
	return !own
}

func (t *Transport) Close() error { return nil }
