package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/evaluator"
)

// Action is something the customer does at the stall.
type Action string

const (
	ActionPay        Action = "pay"
	ActionDrain      Action = "drain"
	ActionCheckScale Action = "check_scale"
)

var utterances = map[Action]string{
	ActionPay:        "行，我要了，给你钱。",
	ActionDrain:      "老板，你这袋子里水太多了，先帮我把水沥干，或者把角剪破放水。",
	ActionCheckScale: "我这有个手机我知道多重，放你秤上试试准不准。",
}

// Utterance is what the customer says while taking the action.
func (a Action) Utterance() string {
	return utterances[a]
}

// ParseAction accepts "check-scale", "check_scale" and similar spellings.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	_, ok := utterances[a]
	return a, ok
}

// Reaction is the vendor's reply to an action.
type Reaction struct {
	Text    string `json:"text"`
	NewMood Mood   `json:"newMood"`
}

// Fallback is used whenever the reactor cannot produce a usable reaction.
var Fallback = Reaction{Text: DeflectionLine, NewMood: MoodAnnoyed}

// Reactor produces vendor reactions, typically backed by an LLM.
type Reactor interface {
	React(ctx context.Context, action Action, mood Mood) (Reaction, error)
}

// Engine applies customer actions to a stall.
type Engine struct {
	reactor Reactor
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates a market engine. A zero timeout disables the bound.
func NewEngine(reactor Reactor, timeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		reactor: reactor,
		timeout: timeout,
		logger:  logger,
	}
}

// Pay always loses: the player paid for water and a rigged scale.
func (e *Engine) Pay(ctx context.Context, s *State) evaluator.Outcome {
	s.Apply(e.react(ctx, ActionPay, s.VendorMood))
	return evaluator.Outcome{Verdict: evaluator.Lose, Message: s.PayFeedback()}
}

// RequestDrain removes the water bag and asks the vendor to react.
// It does nothing once the bag is gone.
func (e *Engine) RequestDrain(ctx context.Context, s *State) evaluator.Outcome {
	if !s.HasWaterBag {
		return evaluator.Outcome{Verdict: evaluator.Continue}
	}
	mood := s.VendorMood
	s.Drain()
	s.Apply(e.react(ctx, ActionDrain, mood))
	return evaluator.Outcome{Verdict: evaluator.Continue}
}

// RequestScaleCheck wins when the vendor gets angry and refuses to sell.
func (e *Engine) RequestScaleCheck(ctx context.Context, s *State) evaluator.Outcome {
	s.Apply(e.react(ctx, ActionCheckScale, s.VendorMood))
	if s.VendorMood == MoodAngry {
		return evaluator.Outcome{Verdict: evaluator.Win, Message: ScaleCheckWin}
	}
	return evaluator.Outcome{Verdict: evaluator.Continue}
}

func (e *Engine) react(ctx context.Context, action Action, mood Mood) Reaction {
	if e.reactor == nil {
		return Fallback
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	r, err := e.reactor.React(ctx, action, mood)
	if err == nil {
		err = r.validate()
	}
	if err != nil {
		e.logger.Warn("Vendor reaction unavailable, using fallback", "action", action, "error", err)
		return Fallback
	}
	r.Text = strings.TrimSpace(r.Text)
	return r
}

func (r Reaction) validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("empty vendor text")
	}
	if !r.NewMood.Valid() {
		return fmt.Errorf("unknown vendor mood %q", r.NewMood)
	}
	return nil
}
