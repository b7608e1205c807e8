package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
)

// Params are the sampling settings for a scammer reply.
type Params struct {
	MaxOutputTokens int
	Temperature     float64
}

// DefaultParams keeps replies short and lively.
var DefaultParams = Params{MaxOutputTokens: 150, Temperature: 0.9}

// ReplyRequest carries everything a generator needs to produce the next scammer line.
// Transcript already ends with the player's latest message.
type ReplyRequest struct {
	Transcript []chat.Message
	Persona    string
	Goal       string
	Params     Params
}

// Generator produces in-character scammer replies.
type Generator interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
}

// Random is the source of chance for fallbacks, blurring and hints.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Notifier receives session events as they happen. Errors are logged and
// never affect the game.
type Notifier interface {
	PublishTyping(ctx context.Context, sessionID string, typing bool) error
	PublishMessage(ctx context.Context, sessionID string, msg chat.Message) error
	PublishStatus(ctx context.Context, sessionID string, status string, feedback string, score int) error
	PublishHint(ctx context.Context, sessionID string, hint string) error
	PublishMarket(ctx context.Context, sessionID string, state *market.State) error
}

// Deps are the collaborators of a Machine. Zero values get usable defaults,
// except Generator and Reactor whose absence means every call falls back.
type Deps struct {
	Generator   Generator
	Reactor     market.Reactor
	Random      Random
	Now         func() time.Time
	Logger      *slog.Logger
	Notifier    Notifier
	CallTimeout time.Duration // bound on each generator or reactor call; zero disables
	ThinkDelay  time.Duration // pause before a reply or verdict is shown
	Params      Params
}

func (d Deps) withDefaults() Deps {
	if d.Random == nil {
		now := uint64(time.Now().UnixNano())
		d.Random = rand.New(rand.NewPCG(now, now>>1))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Params == (Params{}) {
		d.Params = DefaultParams
	}
	return d
}

type nopNotifier struct{}

func (nopNotifier) PublishTyping(context.Context, string, bool) error                { return nil }
func (nopNotifier) PublishMessage(context.Context, string, chat.Message) error       { return nil }
func (nopNotifier) PublishStatus(context.Context, string, string, string, int) error { return nil }
func (nopNotifier) PublishHint(context.Context, string, string) error                { return nil }
func (nopNotifier) PublishMarket(context.Context, string, *market.State) error       { return nil }
