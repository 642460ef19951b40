package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileKV persists session state as files under a local directory. It is
// the default backend for single-node deployments and local development.
type FileKV struct {
	dir string
}

// NewFileKV constructs a filesystem-backed KV rooted at dir.
func NewFileKV(dir string) (*FileKV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage directory is required")
	}
	return &FileKV{dir: dir}, nil
}

// Ensure creates the root directory if it does not exist.
func (f *FileKV) Ensure(_ context.Context) error {
	return os.MkdirAll(f.dir, 0o755)
}

// Put stores a value under a key. Keys may contain slashes; intermediate
// directories are created as needed.
func (f *FileKV) Put(_ context.Context, key string, value []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, value, 0o600)
}

// Get reads the value stored under a key.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a key.
func (f *FileKV) Delete(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Dir returns the configured root directory.
func (f *FileKV) Dir() string {
	return f.dir
}

func (f *FileKV) path(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", errors.New("storage: invalid key")
	}
	return filepath.Join(f.dir, cleaned), nil
}
