package session

import "sync"

// Manager hands out session stores keyed by session id. Each client
// (one browser, roughly) owns one session id; requests carrying the same
// id share one Store so the in-flight guard actually serializes them.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	newFn  func(sid string) *Store
}

// NewManager constructs a Manager creating stores through newStore.
func NewManager(newStore func(sid string) *Store) *Manager {
	return &Manager{
		stores: make(map[string]*Store),
		newFn:  newStore,
	}
}

// Store returns the session store for sid, creating it on first use.
func (m *Manager) Store(sid string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stores[sid]; ok {
		return st
	}
	st := m.newFn(sid)
	m.stores[sid] = st
	return st
}

// Forget drops the in-memory store for sid, typically after logout.
// Durable state is unaffected.
//
// TODO: evict idle stores on a timer; Forget only covers explicit logout.
func (m *Manager) Forget(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, sid)
}
