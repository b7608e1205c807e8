package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scam-sim/pkg/session"
	pstorage "github.com/jwebster45206/scam-sim/pkg/storage"
)

const (
	sessionKeyPrefix = "session:"
	lockKeyPrefix    = "session-lock:"
)

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// saveScript writes a snapshot unless the stored one has a higher epoch.
// Returns 0 when the write was refused.
var saveScript = redis.NewScript(`
	local cur = redis.call("get", KEYS[1])
	if cur then
		local ok, stored = pcall(cjson.decode, cur)
		if ok and type(stored) == "table" and tonumber(stored["epoch"]) ~= nil
			and tonumber(stored["epoch"]) > tonumber(ARGV[2]) then
			return 0
		end
	end
	redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[3])
	return 1
`)

// RedisStorage keeps session snapshots in Redis with a sliding TTL.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ pstorage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage instance. redisURL is either a
// host:port address or a redis:// URL.
func NewRedisStorage(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt := &redis.Options{Addr: redisURL}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		var err error
		opt, err = redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = pstorage.DefaultSessionTTL
	}

	return &RedisStorage{
		client: redis.NewClient(opt),
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Client returns the underlying Redis client for pub/sub consumers.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Session operations

func (r *RedisStorage) SaveSession(ctx context.Context, st *session.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		r.logger.Error("Failed to marshal session", "session_id", st.ID, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	saved, err := saveScript.Run(ctx, r.client, []string{sessionKeyPrefix + st.ID},
		data, st.Epoch, r.ttl.Milliseconds()).Int()
	if err != nil {
		r.logger.Error("Failed to save session", "session_id", st.ID, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	if saved == 0 {
		return pstorage.ErrStaleSession
	}
	return nil
}

func (r *RedisStorage) LoadSession(ctx context.Context, id string) (*session.State, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Session not found", "session_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		r.logger.Error("Failed to unmarshal session", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &st, nil
}

func (r *RedisStorage) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		r.logger.Error("Failed to delete session", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Turn lock

func (r *RedisStorage) AcquireLock(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+id, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	return ok, nil
}

func (r *RedisStorage) ReleaseLock(ctx context.Context, id, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + id}, owner).Err(); err != nil {
		r.logger.Error("Failed to release session lock", "session_id", id, "error", err)
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}
