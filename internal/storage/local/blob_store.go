// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// RootDir is the directory all blob paths are rooted under.
	RootDir string `mapstructure:"root_dir"`
}

// BlobStore writes one file per blob path under a root directory.
type BlobStore struct {
	rootDir string
}

// New creates a filesystem-backed blob store, creating the root directory
// if needed.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.RootDir) == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	info, err := os.Stat(cfg.RootDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.RootDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create root directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat root directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootDir)
	}
	return &BlobStore{rootDir: cfg.RootDir}, nil
}

// PutObject writes data to rootDir/path and returns a file:// URI. Missing
// parent directories are created; concurrent writers racing to create the
// same parent are fine because MkdirAll treats an existing directory as
// success.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.rootDir, filepath.FromSlash(path))

	// Reject paths that escape the root.
	cleanRoot := filepath.Clean(s.rootDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the storage root", path)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	if err := os.WriteFile(fullPath, payload, 0o640); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
