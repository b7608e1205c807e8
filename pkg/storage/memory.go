package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/session"
)

type memoryEntry struct {
	state   *session.State
	expires time.Time
}

type memoryLock struct {
	owner   string
	expires time.Time
}

// MemoryStorage is an in-process Storage for single-instance deployments and tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	sessions  map[string]memoryEntry
	locks     map[string]memoryLock
	pingError error
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty store. A zero ttl uses DefaultSessionTTL.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStorage{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]memoryLock),
	}
}

// SetPingError makes Ping fail with err; nil restores success.
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveSession(ctx context.Context, st *session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[st.ID]; ok && !m.now().After(e.expires) && e.state.Epoch > st.Epoch {
		return ErrStaleSession
	}
	m.sessions[st.ID] = memoryEntry{state: st.Clone(), expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStorage) LoadSession(ctx context.Context, id string) (*session.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok || m.now().After(e.expires) {
		return nil, nil
	}
	return e.state.Clone(), nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStorage) AcquireLock(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.locks[id]; ok && now.Before(l.expires) {
		return false, nil
	}
	m.locks[id] = memoryLock{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryStorage) ReleaseLock(ctx context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[id]; ok && l.owner == owner {
		delete(m.locks, id)
	}
	return nil
}
