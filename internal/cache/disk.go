package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Format selects the on-disk entry encoding.
type Format string

const (
	FormatPlain Format = "plain"
	FormatGzip  Format = "gzip"
)

// DiskCache implements persistent disk-based caching. Entries written
// with ttl 0 never expire; there is no implicit TTL.
type DiskCache struct {
	dir    string
	format Format
}

// NewDiskCache creates a new disk cache
func NewDiskCache(dir string, format Format) *DiskCache {
	if format == "" {
		format = FormatPlain
	}
	return &DiskCache{
		dir:    dir,
		format: format,
	}
}

type cacheEntry struct {
	Data      []byte    `json:"data"`
	Format    Format    `json:"format"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // Zero means no expiry
}

// Get retrieves a value from the disk cache
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}

	payload := entry.Data
	if entry.Format == FormatGzip {
		payload, err = gunzip(payload)
		if err != nil {
			return nil, false
		}
	}

	return payload, true
}

// Set stores a value in the disk cache
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	entry := cacheEntry{
		Data:   value,
		Format: c.format,
	}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	if c.format == FormatGzip {
		compressed, err := gzipBytes(value)
		if err != nil {
			return fmt.Errorf("compress entry: %w", err)
		}
		entry.Data = compressed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := c.path(key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	return nil
}

// Delete removes a value from the disk cache
func (c *DiskCache) Delete(key string) error {
	path := c.path(key)
	return os.Remove(path)
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".cache")
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
