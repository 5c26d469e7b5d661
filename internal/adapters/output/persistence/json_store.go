// Package persistence stores the registry document as a versioned JSON file.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/richardctrimble/ha-emulated-hue/internal/ports"
)

// JSONStore persists the registry document to a single JSON file, writing
// atomically via a temp file + rename. A missing file reads as an empty
// store.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a store backed by the given file path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load implements ports.DocumentStore.
func (s *JSONStore) Load(_ context.Context) (*ports.RegistryDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc ports.RegistryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if doc.Version > ports.StorageVersion {
		return nil, fmt.Errorf("unsupported storage version %d in %s", doc.Version, s.path)
	}
	return &doc, nil
}

// Save implements ports.DocumentStore.
func (s *JSONStore) Save(_ context.Context, doc *ports.RegistryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".devices-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
