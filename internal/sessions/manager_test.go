package sessions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scam-sim/pkg/evaluator"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
	"github.com/jwebster45206/scam-sim/pkg/session"
	"github.com/jwebster45206/scam-sim/pkg/storage"
)

type staticGenerator string

func (g staticGenerator) GenerateReply(context.Context, session.ReplyRequest) (string, error) {
	return string(g), nil
}

// gatedGenerator blocks each reply until release is closed.
type gatedGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedGenerator) GenerateReply(ctx context.Context, _ session.ReplyRequest) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return "亲，名额有限哦", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedGenerator) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("generator was not called")
	}
}

type submitResult struct {
	st  *session.State
	err error
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(store storage.Storage, opts ...Option) *Manager {
	return NewManager(store, session.Deps{Generator: staticGenerator("亲，名额有限哦")}, quietLogger(), opts...)
}

func TestManager_CreateAndGet(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	m := newTestManager(store)
	ctx := context.Background()

	created, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.StatusMenu, created.Status)
	assert.NotEmpty(t, created.ID)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	stored, err := store.LoadSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.StatusMenu, stored.Status)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_PlayPersists(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	m := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	s, err = m.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPlaying, s.Status)

	s, err = m.Submit(ctx, s.ID, "具体怎么做？")
	require.NoError(t, err)
	assert.Len(t, s.Transcript, 3)

	s, err = m.Submit(ctx, s.ID, "我要报警")
	require.NoError(t, err)
	assert.Equal(t, session.StatusWon, s.Status)

	stored, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusWon, stored.Status)
	assert.Equal(t, session.WinPoints, stored.Score)
	assert.Len(t, stored.Transcript, 4)

	s, err = m.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusMenu, s.Status)
	assert.Equal(t, session.WinPoints, s.Score)
}

func TestManager_ErrorsPassThrough(t *testing.T) {
	m := newTestManager(storage.NewMemoryStorage(time.Hour))
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = m.Submit(ctx, s.ID, "你好")
	assert.ErrorIs(t, err, session.ErrNotPlaying)

	_, err = m.Retry(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)

	_, err = m.Start(ctx, "missing", scenario.Market)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_ActAndMarket(t *testing.T) {
	m := newTestManager(storage.NewMemoryStorage(time.Hour))
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = m.Start(ctx, s.ID, scenario.ChatService)
	require.NoError(t, err)
	s, err = m.Act(ctx, s.ID, string(evaluator.ActionVideoCall))
	require.NoError(t, err)
	assert.Equal(t, session.StatusLost, s.Status)

	_, err = m.Reset(ctx, s.ID)
	require.NoError(t, err)
	_, err = m.Start(ctx, s.ID, scenario.Market)
	require.NoError(t, err)
	s, err = m.Market(ctx, s.ID, market.ActionDrain)
	require.NoError(t, err)
	assert.False(t, s.Market.HasWaterBag)
}

func TestManager_RehydratesFromStorage(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	ctx := context.Background()

	first := newTestManager(store)
	s, err := first.Create(ctx)
	require.NoError(t, err)
	_, err = first.Start(ctx, s.ID, scenario.ChatCrypto)
	require.NoError(t, err)

	// A second instance, or this one after a restart.
	second := newTestManager(store)
	got, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPlaying, got.Status)
	assert.Equal(t, scenario.ChatCrypto, got.ScenarioID)

	got, err = second.Submit(ctx, s.ID, "密码是123456")
	require.NoError(t, err)
	assert.Equal(t, session.StatusLost, got.Status)

	// The first instance picks up the newer snapshot.
	got, err = first.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusLost, got.Status)
}

func TestManager_BusyLock(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	m := newTestManager(store, WithLockTiming(time.Minute, 0))
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)

	ok, err := store.AcquireLock(ctx, s.ID, "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = m.Submit(ctx, s.ID, "你好")
	assert.ErrorIs(t, err, ErrBusy)

	// Reset does not wait for the turn lock.
	s, err = m.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusMenu, s.Status)

	require.NoError(t, store.ReleaseLock(ctx, s.ID, "someone-else"))
	_, err = m.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)
	_, err = m.Submit(ctx, s.ID, "你好")
	assert.NoError(t, err)
}

func TestManager_Delete(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	m := newTestManager(store)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, s.ID))

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Live())
}

func TestManager_Sweep(t *testing.T) {
	m := newTestManager(storage.NewMemoryStorage(time.Hour), WithTTL(time.Minute))
	ctx := context.Background()

	_, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, m.Live())

	assert.Zero(t, m.Sweep(time.Now()))
	assert.Equal(t, 2, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, m.Live())
}

func TestManager_LateReplyAfterResetOnOtherInstance(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	gen := newGatedGenerator()
	a := NewManager(store, session.Deps{Generator: gen}, quietLogger())
	b := newTestManager(store)
	ctx := context.Background()

	s, err := a.Create(ctx)
	require.NoError(t, err)
	_, err = a.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)

	done := make(chan submitResult, 1)
	go func() {
		st, err := a.Submit(ctx, s.ID, "你好")
		done <- submitResult{st, err}
	}()
	gen.waitEntered(t)

	reset, err := b.Reset(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusMenu, reset.Status)

	close(gen.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, session.StatusMenu, res.st.Status, "late reply must not revive the session")
	assert.Equal(t, reset.Epoch, res.st.Epoch)

	stored, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusMenu, stored.Status)
	assert.Empty(t, stored.Transcript)
	assert.Equal(t, reset.Epoch, stored.Epoch)

	for name, m := range map[string]*Manager{"a": a, "b": b} {
		got, err := m.Get(ctx, s.ID)
		require.NoError(t, err, name)
		assert.Equal(t, session.StatusMenu, got.Status, name)
	}
}

func TestManager_RestartOnOtherInstanceWins(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	gen := newGatedGenerator()
	a := NewManager(store, session.Deps{Generator: gen}, quietLogger())
	b := newTestManager(store)
	ctx := context.Background()

	s, err := a.Create(ctx)
	require.NoError(t, err)
	_, err = a.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)

	done := make(chan submitResult, 1)
	go func() {
		st, err := a.Submit(ctx, s.ID, "你好")
		done <- submitResult{st, err}
	}()
	gen.waitEntered(t)

	_, err = b.Reset(ctx, s.ID)
	require.NoError(t, err)
	restarted, err := b.Start(ctx, s.ID, scenario.ChatCrypto)
	require.NoError(t, err)

	close(gen.release)
	require.NoError(t, (<-done).err)

	stored, err := store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, scenario.ChatCrypto, stored.ScenarioID)
	assert.Equal(t, restarted.Epoch, stored.Epoch)
	assert.Len(t, stored.Transcript, 1)
}

func TestManager_SecondSubmitWaitsForPendingReply(t *testing.T) {
	store := storage.NewMemoryStorage(time.Hour)
	gen := newGatedGenerator()
	m := NewManager(store, session.Deps{Generator: gen, CallTimeout: 20 * time.Second}, quietLogger())
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Start(ctx, s.ID, scenario.ChatRebate)
	require.NoError(t, err)

	first := make(chan submitResult, 1)
	go func() {
		st, err := m.Submit(ctx, s.ID, "你好")
		first <- submitResult{st, err}
	}()
	gen.waitEntered(t)

	second := make(chan submitResult, 1)
	go func() {
		st, err := m.Submit(ctx, s.ID, "多少钱")
		second <- submitResult{st, err}
	}()

	time.Sleep(200 * time.Millisecond)
	close(gen.release)

	require.NoError(t, (<-first).err)
	res := <-second
	require.NoError(t, res.err)
	// opening line plus two rounds
	assert.Len(t, res.st.Transcript, 5)
}

func TestManager_LockTimingFollowsCallBound(t *testing.T) {
	assert.Equal(t, 30*time.Second, LockTTLFor(20*time.Second, 0))
	assert.Equal(t, 57*time.Second, LockTTLFor(45*time.Second, 2*time.Second))
	assert.Equal(t, DefaultLockTTL, LockTTLFor(0, 0))

	m := NewManager(storage.NewMemoryStorage(time.Hour),
		session.Deps{CallTimeout: 45 * time.Second, ThinkDelay: 2 * time.Second}, quietLogger())
	assert.Equal(t, 57*time.Second, m.lockTTL)
	assert.Equal(t, m.lockTTL, m.lockWait)

	m = NewManager(storage.NewMemoryStorage(time.Hour), session.Deps{}, quietLogger(),
		WithLockTiming(time.Minute, time.Second))
	assert.Equal(t, time.Minute, m.lockTTL)
	assert.Equal(t, time.Second, m.lockWait)
}
