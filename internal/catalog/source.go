package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Maharab24/Bottle-Collection/pkg/httpclient"
)

// NewSource picks a source from a location: empty selects the embedded
// catalog, http(s) URLs are fetched once, anything else is a file path.
func NewSource(location string, timeout time.Duration) Source {
	switch {
	case location == "":
		return EmbeddedSource{}
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, timeout)
	default:
		return FileSource{Path: location}
	}
}

// EmbeddedSource serves the catalog compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Fetch(context.Context) ([]byte, error) { return defaultCatalog, nil }

func (EmbeddedSource) String() string { return "embedded:bottles.json" }

// FileSource reads the catalog from a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return data, nil
}

func (s FileSource) String() string { return "file:" + s.Path }

// HTTPSource fetches the catalog with a single GET request.
type HTTPSource struct {
	URL    string
	client *httpclient.Client
}

// NewHTTPSource returns a source that never retries.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 0
	cfg.MaxConnsPerHost = 2
	return &HTTPSource{URL: url, client: httpclient.New(cfg)}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.URL, "catalog")
}

func (s *HTTPSource) String() string { return s.URL }
