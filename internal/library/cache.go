package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Cache is the local snapshot store consumed by Load and Save. A nil Get
// result with a nil error means the cache is empty.
type Cache interface {
	Get() ([]byte, error)
	Set(data []byte) error
	Remove() error
}

// Fetcher retrieves an initial snapshot from a remote source. Used as the
// fallback when the local cache misses.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileCache stores the snapshot as a single JSON file on disk.
type FileCache struct {
	Path string
}

// NewFileCache creates a file-backed cache at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

// Get reads the snapshot file. A missing file is a cache miss, not an error.
func (c *FileCache) Get() ([]byte, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file cache: read %s: %w", c.Path, err)
	}
	return data, nil
}

// Set writes the snapshot file, creating parent directories as needed.
func (c *FileCache) Set(data []byte) error {
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("file cache: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(c.Path, data, 0644); err != nil {
		return fmt.Errorf("file cache: write %s: %w", c.Path, err)
	}
	return nil
}

// Remove deletes the snapshot file. Removing an absent file is a no-op.
func (c *FileCache) Remove() error {
	err := os.Remove(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// HTTPFetcher fetches the serialized aggregate with a plain GET.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher for the given snapshot URL.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{URL: url, Client: http.DefaultClient}
}

// Fetch performs the GET and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("remote snapshot: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote snapshot: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote snapshot: read body: %w", err)
	}
	return data, nil
}
