// Package local provides standalone implementations of the engine
// collaborator contracts, used when rigger runs outside an orchestration
// engine (CLI runs and tests).
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"rigger/internal/api"
)

// MemoryStore is an in-memory PropertyStore for a single instance.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]interface{}{}}
}

func (s *MemoryStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DirDownloader resolves blueprint-relative resources against a local root
// directory, copying them to the requested destination.
type DirDownloader struct {
	Root string
}

// Download implements api.ResourceDownloader against the local root.
func (d *DirDownloader) Download(ctx context.Context, relativePath, destPath string) (string, error) {
	srcPath := filepath.Join(d.Root, relativePath)
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("resource %s not found under %s: %w", relativePath, d.Root, err)
	}
	defer src.Close()

	if destPath == "" {
		destPath = filepath.Join(os.TempDir(), filepath.Base(relativePath))
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer dest.Close()
	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("failed to copy resource %s: %w", relativePath, err)
	}
	return destPath, nil
}

var _ api.PropertyStore = (*MemoryStore)(nil)
var _ api.ResourceDownloader = (*DirDownloader)(nil)
