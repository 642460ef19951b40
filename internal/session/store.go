package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/thusconnect/apiserver/internal/storage"
	"github.com/thusconnect/apiserver/types"
)

const (
	identityKey = "identity"
	roleKey     = "role"
)

// Store owns the session of one client. The rest of the application only
// reads the session through Current or mutates it through Set and Clear;
// the auth service is the only writer.
type Store struct {
	kv     *storage.Store
	prefix string

	mu      sync.RWMutex
	session Session

	// inflight is a single-slot guard serializing auth operations on
	// this session. Two concurrent writers would race on both the
	// in-memory state and the persisted entries.
	inflight *semaphore.Weighted
}

// NewStore constructs a session store persisting under the given key
// prefix. The store starts in the loading state until Restore runs.
func NewStore(kv *storage.Store, prefix string) *Store {
	return &Store{
		kv:       kv,
		prefix:   prefix,
		session:  Session{Loading: true},
		inflight: semaphore.NewWeighted(1),
	}
}

// Restore attempts to populate the session from durable storage. Absent,
// partial, or malformed persisted state restores to "no session" and is
// not an error; only backend failures are reported. The loading flag is
// cleared in every case.
func (s *Store) Restore(ctx context.Context) error {
	identity, err := s.readPersisted(ctx)

	s.mu.Lock()
	s.session = Session{Identity: identity, Loading: false}
	s.mu.Unlock()

	return err
}

// readPersisted loads and validates the two persisted entries. A nil
// identity with a nil error means a clean "no session".
func (s *Store) readPersisted(ctx context.Context) (*types.Identity, error) {
	roleRaw, err := s.kv.Get(ctx, s.prefix+roleKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	role, err := types.ParseRole(string(roleRaw))
	if err != nil {
		return nil, nil
	}

	identityRaw, err := s.kv.Get(ctx, s.prefix+identityKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var identity types.Identity
	if err := json.Unmarshal(identityRaw, &identity); err != nil {
		return nil, nil
	}
	if identity.Role != role {
		return nil, nil
	}
	return &identity, nil
}

// Set stores the identity and its role into the in-memory session and
// durable storage.
func (s *Store) Set(ctx context.Context, identity types.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, s.prefix+identityKey, data); err != nil {
		return err
	}
	if err := s.kv.Put(ctx, s.prefix+roleKey, []byte(identity.Role)); err != nil {
		return err
	}

	s.mu.Lock()
	s.session.Identity = &identity
	s.mu.Unlock()
	return nil
}

// Clear removes the identity from the in-memory session and durable
// storage.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.prefix+identityKey); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, s.prefix+roleKey); err != nil {
		return err
	}

	s.mu.Lock()
	s.session.Identity = nil
	s.mu.Unlock()
	return nil
}

// Current returns a snapshot of the session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetLoading toggles the loading flag around auth operations.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.session.Loading = loading
	s.mu.Unlock()
}

// TryBeginAuth claims the single auth operation slot. It returns false
// when another auth operation is already in flight on this session.
func (s *Store) TryBeginAuth() bool {
	return s.inflight.TryAcquire(1)
}

// EndAuth releases the auth operation slot.
func (s *Store) EndAuth() {
	s.inflight.Release(1)
}
