package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/session"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTyping        EventType = "session.typing"
	EventTypeMessage       EventType = "session.message"
	EventTypeStatus        EventType = "session.status"
	EventTypeHint          EventType = "session.hint"
	EventTypeMarketUpdated EventType = "market.updated"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel carrying a session's events.
func Channel(sessionID string) string {
	return "session-events:" + sessionID
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ session.Notifier = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishTyping publishes a session.typing event
func (b *Broadcaster) PublishTyping(ctx context.Context, sessionID string, typing bool) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTyping,
		SessionID: sessionID,
		Data:      map[string]any{"typing": typing},
	})
}

// PublishMessage publishes a session.message event
func (b *Broadcaster) PublishMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	return b.publish(ctx, Event{
		Type:      EventTypeMessage,
		SessionID: sessionID,
		Data:      map[string]any{"message": msg},
	})
}

// PublishStatus publishes a session.status event
func (b *Broadcaster) PublishStatus(ctx context.Context, sessionID string, status string, feedback string, score int) error {
	return b.publish(ctx, Event{
		Type:      EventTypeStatus,
		SessionID: sessionID,
		Data: map[string]any{
			"status":   status,
			"feedback": feedback,
			"score":    score,
		},
	})
}

// PublishHint publishes a session.hint event
func (b *Broadcaster) PublishHint(ctx context.Context, sessionID string, hint string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeHint,
		SessionID: sessionID,
		Data:      map[string]any{"hint": hint},
	})
}

// PublishMarket publishes a market.updated event
func (b *Broadcaster) PublishMarket(ctx context.Context, sessionID string, state *market.State) error {
	return b.publish(ctx, Event{
		Type:      EventTypeMarketUpdated,
		SessionID: sessionID,
		Data:      map[string]any{"market": state},
	})
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.SessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
