// Package sessions keeps the live session machines of one API instance and
// coordinates them with shared storage.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scam-sim/internal/logger"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
	"github.com/jwebster45206/scam-sim/pkg/session"
	"github.com/jwebster45206/scam-sim/pkg/storage"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session is busy")
)

const (
	// DefaultLockTTL is used when the machines have no call timeout.
	DefaultLockTTL = 30 * time.Second
	// LockMargin is added to the longest turn to get the turn lock TTL.
	LockMargin = 10 * time.Second
	lockPoll   = 50 * time.Millisecond
)

// LockTTLFor returns a turn lock TTL that outlives one turn: a generator call
// bounded by callTimeout followed by thinkDelay.
func LockTTLFor(callTimeout, thinkDelay time.Duration) time.Duration {
	if callTimeout <= 0 {
		return DefaultLockTTL + thinkDelay
	}
	return callTimeout + thinkDelay + LockMargin
}

// Manager owns the session machines live on this instance. Snapshots are
// written to storage after every operation so another instance, or this one
// after a restart, can pick the session up.
type Manager struct {
	store    storage.Storage
	deps     session.Deps
	logger   *slog.Logger
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration

	mu   sync.Mutex
	live map[string]*session.Machine
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long an idle session stays live in memory.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithLockTiming sets the turn lock TTL and how long to wait for it. By
// default both are LockTTLFor the machines' call timeout and think delay, so
// a turn waits out a pending one instead of failing with ErrBusy.
func WithLockTiming(ttl, wait time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
		m.lockWait = wait
	}
}

// NewManager creates a manager. deps is the template every machine is built
// from; a nil Random gives each machine its own source.
func NewManager(store storage.Storage, deps session.Deps, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		deps:     deps,
		logger:   logger,
		ttl:      storage.DefaultSessionTTL,
		lockTTL:  LockTTLFor(deps.CallTimeout, deps.ThinkDelay),
		live:     make(map[string]*session.Machine),
	}
	m.lockWait = m.lockTTL
	for _, opt := range opts {
		opt(m)
	}
	if m.deps.Logger == nil {
		m.deps.Logger = logger
	}
	return m
}

// Create registers a new session in the menu.
func (m *Manager) Create(ctx context.Context) (*session.State, error) {
	id := uuid.NewString()
	mach := session.New(id, m.deps)

	st := mach.Snapshot()
	if err := m.store.SaveSession(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save new session: %w", err)
	}

	m.mu.Lock()
	m.live[id] = mach
	m.mu.Unlock()

	m.logger.Info("Session created", "session_id", id)
	return st, nil
}

// Get returns the current snapshot of a session.
func (m *Manager) Get(ctx context.Context, id string) (*session.State, error) {
	mach, err := m.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	return mach.Snapshot(), nil
}

// Delete removes a session everywhere. In-flight work is cancelled.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	mach, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if ok {
		mach.Reset(ctx)
	}

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("Session deleted", "session_id", id)
	return nil
}

// Start begins a scenario. Like Reset it does not wait for the turn lock, so
// it can preempt a pending reply.
func (m *Manager) Start(ctx context.Context, id string, scenarioID scenario.ID) (*session.State, error) {
	return m.preempt(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.Start(ctx, scenarioID)
	})
}

// Reset returns the session to the menu, cancelling any pending reply.
func (m *Manager) Reset(ctx context.Context, id string) (*session.State, error) {
	return m.preempt(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.Reset(ctx), nil
	})
}

// Retry replays the scenario after a loss.
func (m *Manager) Retry(ctx context.Context, id string) (*session.State, error) {
	return m.preempt(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.Retry(ctx)
	})
}

// Submit sends a player message.
func (m *Manager) Submit(ctx context.Context, id, text string) (*session.State, error) {
	return m.locked(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.SubmitUserMessage(ctx, text)
	})
}

// Act performs a direct chat action.
func (m *Manager) Act(ctx context.Context, id, action string) (*session.State, error) {
	return m.locked(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.Act(ctx, action)
	})
}

// Market performs a market action.
func (m *Manager) Market(ctx context.Context, id string, action market.Action) (*session.State, error) {
	return m.locked(ctx, id, func(mach *session.Machine) (*session.State, error) {
		return mach.MarketAction(ctx, action)
	})
}

type op func(*session.Machine) (*session.State, error)

func (m *Manager) preempt(ctx context.Context, id string, fn op) (*session.State, error) {
	mach, err := m.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := fn(mach); err != nil {
		return nil, err
	}
	return m.persist(ctx, mach), nil
}

// locked runs fn while holding the session's turn lock in storage.
func (m *Manager) locked(ctx context.Context, id string, fn op) (*session.State, error) {
	owner := uuid.NewString()
	if err := m.acquire(ctx, id, owner); err != nil {
		return nil, err
	}
	defer func() {
		// The request context may already be gone; the lock must still be released.
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), id, owner); err != nil {
			logger.WithError(m.logger, err).Warn("Failed to release turn lock", "session_id", id)
		}
	}()

	mach, err := m.machine(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := fn(mach); err != nil {
		return nil, err
	}
	return m.persist(ctx, mach), nil
}

func (m *Manager) acquire(ctx context.Context, id, owner string) error {
	deadline := time.Now().Add(m.lockWait)
	for {
		ok, err := m.store.AcquireLock(ctx, id, owner, m.lockTTL)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}

// persist saves the machine's current snapshot, which may be newer than the
// result of the operation that triggered the save. When storage already holds
// a later epoch (a start, retry or reset on another instance) the local
// machine is dropped and the stored snapshot returned instead.
func (m *Manager) persist(ctx context.Context, mach *session.Machine) *session.State {
	st := mach.Snapshot()
	log := logger.WithSession(m.logger, st.ID)

	// A machine that was deleted or replaced meanwhile must not overwrite storage.
	m.mu.Lock()
	current := m.live[st.ID] == mach
	m.mu.Unlock()
	if !current {
		return st
	}

	ctx = context.WithoutCancel(ctx)
	err := m.store.SaveSession(ctx, st)
	switch {
	case err == nil:
		return st
	case errors.Is(err, storage.ErrStaleSession):
		log.Debug("Discarding stale session snapshot", "epoch", st.Epoch)
		m.mu.Lock()
		if m.live[st.ID] == mach {
			delete(m.live, st.ID)
		}
		m.mu.Unlock()

		stored, loadErr := m.store.LoadSession(ctx, st.ID)
		if loadErr != nil || stored == nil {
			if loadErr != nil {
				logger.WithError(log, loadErr).Error("Failed to reload session")
			}
			return st
		}
		return stored
	default:
		logger.WithError(log, err).Error("Failed to persist session")
		return st
	}
}

// machine returns the live machine for id, rebuilding it from storage when
// this instance does not have it or another instance has moved it on.
func (m *Manager) machine(ctx context.Context, id string) (*session.Machine, error) {
	stored, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mach, ok := m.live[id]
	if ok && (stored == nil || !movedOn(stored, mach.Snapshot())) {
		return mach, nil
	}
	if stored == nil {
		return nil, ErrNotFound
	}

	if ok {
		m.logger.Debug("Session changed elsewhere, reloading", "session_id", id)
	} else {
		m.logger.Debug("Session rehydrated from storage", "session_id", id)
	}
	mach = session.Restore(stored, m.deps)
	m.live[id] = mach
	return mach, nil
}

// movedOn reports whether the stored snapshot is ahead of the local one.
func movedOn(stored, local *session.State) bool {
	if stored.Epoch != local.Epoch {
		return stored.Epoch > local.Epoch
	}
	return stored.UpdatedAt.After(local.UpdatedAt)
}

// Sweep drops live machines idle for longer than the TTL and returns how many
// were dropped. Storage expiry is handled by the store.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, mach := range m.live {
		if now.Sub(mach.Snapshot().UpdatedAt) > m.ttl {
			delete(m.live, id)
			n++
		}
	}
	return n
}

// Live returns how many sessions this instance holds in memory.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Info("Dropped idle sessions", "count", n)
			}
		}
	}
}
