package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/session"
)

// DefaultSessionTTL bounds how long an idle session snapshot is kept.
const DefaultSessionTTL = time.Hour

// ErrStaleSession is returned by SaveSession when the stored snapshot has a
// newer epoch than the one being written.
var ErrStaleSession = errors.New("stale session snapshot")

// Storage keeps live session snapshots and the per-session turn lock that
// serializes mutations across API instances.
//
// LoadSession returns nil, nil when the session does not exist or has expired.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session snapshots. SaveSession refuses with ErrStaleSession when the
	// stored snapshot has a higher epoch, so a reply that finishes after a
	// start, retry or reset elsewhere cannot overwrite it.
	SaveSession(ctx context.Context, st *session.State) error
	LoadSession(ctx context.Context, id string) (*session.State, error)
	DeleteSession(ctx context.Context, id string) error

	// Turn lock. AcquireLock reports false when another owner holds it.
	// ReleaseLock is a no-op unless owner holds the lock.
	AcquireLock(ctx context.Context, id, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, id, owner string) error
}
