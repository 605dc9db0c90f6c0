package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifacts under a filesystem root. URIs are the
// joined paths, so they stay readable in logs and usable from a shell.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "artifacts"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the store's base directory, for static file serving.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes the artifact, creating parent directories as needed.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Load reads an artifact by key or by a URI this store produced.
func (s *LocalStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// URL returns the artifact's path. Local artifacts have no presigning.
func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return s.path(key), nil
}

func (s *LocalStore) path(key string) string {
	key = filepath.FromSlash(key)
	if strings.HasPrefix(key, s.root+string(filepath.Separator)) || key == s.root {
		return key
	}
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.root, key)
}
