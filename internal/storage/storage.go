package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get when no value is stored under a key.
// Absence is an expected condition for session restoration, so backends
// must map their native not-found errors onto it.
var ErrNotExist = errors.New("storage: key does not exist")

// KV defines the durable key-value operations session state is persisted
// through. Values are small opaque blobs with last-write-wins overwrite
// semantics; there is no locking and no partial-write protection.
type KV interface {
	Ensure(ctx context.Context) error
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Store wraps a KV backend with a stable API.
type Store struct {
	backend KV
}

// NewStore constructs a Store wrapper for the provided backend.
func NewStore(backend KV) *Store {
	return &Store{backend: backend}
}

// Ensure prepares the backend (creates the bucket or directory).
func (s *Store) Ensure(ctx context.Context) error {
	return s.backend.Ensure(ctx)
}

// Put stores a value under a key, overwriting any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.backend.Put(ctx, key, value)
}

// Get reads the value stored under a key, or ErrNotExist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.backend.Delete(ctx, key)
	if errors.Is(err, ErrNotExist) {
		return nil
	}
	return err
}

func readAllAndClose(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}
