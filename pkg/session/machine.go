// Package session drives a single player's game: scenario selection, the
// conversation loop, market interactions and the win/lose/retry/reset lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/evaluator"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
)

// BlurredText replaces a scammer message that simulates a suspicious attachment.
const BlurredText = "【对方发送了一个文件/链接】"

// FallbackReplies stand in for the scammer when generation fails or returns
// nothing usable.
var FallbackReplies = []string{
	"怎么不说话了？",
	"亲，这边名额有限，需要尽快操作哦。",
	"我是不会骗你的，你可以去核实的。",
	"到底能不能转？给个痛快话。",
	"你是不是不相信我？",
}

const (
	blurThreshold     = 0.8
	blurMinDifficulty = 2 // exclusive
	hintThreshold     = 0.6
	hintMinTranscript = 2 // exclusive
)

// Machine owns one session's state. All methods are safe for concurrent use.
//
// mu guards state. turn serializes the operations that wait on a generator or
// reactor, so at most one such call is in flight per session. Start, Reset
// and Retry only take mu; they advance the epoch and cancel the in-flight
// call, and the late result is then dropped.
type Machine struct {
	deps   Deps
	market *market.Engine
	logger *slog.Logger

	turn     sync.Mutex
	mu       sync.Mutex
	state    *State
	inflight context.CancelFunc
}

// New creates a session in the menu with a zero score.
func New(id string, deps Deps) *Machine {
	deps = deps.withDefaults()
	now := deps.Now()
	return newMachine(&State{
		ID:        id,
		Status:    StatusMenu,
		CreatedAt: now,
		UpdatedAt: now,
	}, deps)
}

// Restore rebuilds a machine from a stored snapshot.
func Restore(st *State, deps Deps) *Machine {
	deps = deps.withDefaults()
	st = st.Clone()
	st.Typing = false
	return newMachine(st, deps)
}

func newMachine(st *State, deps Deps) *Machine {
	logger := deps.Logger.With("session_id", st.ID)
	return &Machine{
		deps:   deps,
		market: market.NewEngine(deps.Reactor, deps.CallTimeout, logger),
		logger: logger,
		state:  st,
	}
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	return m.state.ID
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Start begins a scenario from the menu. Unknown ids play the placeholder scenario.
func (m *Machine) Start(ctx context.Context, id scenario.ID) (*State, error) {
	m.mu.Lock()
	if m.state.Status != StatusMenu {
		status := m.state.Status
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, status)
	}
	if !scenario.Known(id) {
		m.logger.Warn("Unknown scenario, using placeholder", "scenario_id", id)
	}
	m.begin(id)
	snap := m.state.Clone()
	m.mu.Unlock()

	m.logger.Info("Scenario started", "scenario_id", id, "epoch", snap.Epoch)
	m.publishStarted(ctx, snap)
	return snap, nil
}

// Retry replays the current scenario after a loss.
func (m *Machine) Retry(ctx context.Context) (*State, error) {
	m.mu.Lock()
	if m.state.Status != StatusLost {
		status := m.state.Status
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot retry from %s", ErrInvalidTransition, status)
	}
	m.begin(m.state.ScenarioID)
	snap := m.state.Clone()
	m.mu.Unlock()

	m.logger.Info("Scenario retried", "scenario_id", snap.ScenarioID, "epoch", snap.Epoch)
	m.publishStarted(ctx, snap)
	return snap, nil
}

// Reset returns to the menu from any status. The score is kept; everything
// else about the current scenario is discarded.
func (m *Machine) Reset(ctx context.Context) *State {
	m.mu.Lock()
	m.cancelInFlight()
	st := m.state
	st.Epoch++
	st.Status = StatusMenu
	st.ScenarioID = ""
	st.Transcript = nil
	st.Feedback = ""
	st.Hint = ""
	st.Market = nil
	st.Typing = false
	st.UpdatedAt = m.deps.Now()
	snap := st.Clone()
	m.mu.Unlock()

	m.logger.Info("Session reset", "epoch", snap.Epoch, "score", snap.Score)
	m.notify("status", m.deps.Notifier.PublishStatus(ctx, snap.ID, string(snap.Status), "", snap.Score))
	return snap
}

// begin must be called with mu held.
func (m *Machine) begin(id scenario.ID) {
	m.cancelInFlight()
	cfg := scenario.Get(id)
	st := m.state
	now := m.deps.Now()

	st.Epoch++
	st.ScenarioID = id
	st.Status = StatusPlaying
	st.Transcript = []chat.Message{chat.NewMessage(chat.SenderScammer, cfg.InitialMessage, now)}
	st.Feedback = ""
	st.Hint = ""
	st.Typing = false
	st.Market = nil
	if cfg.IsMarket() {
		st.Market = market.NewState()
	}
	st.UpdatedAt = now
}

// SubmitUserMessage appends the player's message and either ends the game or
// asks the generator for the scammer's reply.
func (m *Machine) SubmitUserMessage(ctx context.Context, text string) (*State, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	m.turn.Lock()
	defer m.turn.Unlock()

	m.mu.Lock()
	st := m.state
	if st.Status != StatusPlaying {
		m.mu.Unlock()
		return nil, ErrNotPlaying
	}
	cfg := scenario.Get(st.ScenarioID)
	if cfg.IsMarket() {
		m.mu.Unlock()
		return nil, ErrWrongScenario
	}

	priorLen := len(st.Transcript)
	userMsg := chat.NewMessage(chat.SenderUser, text, m.deps.Now())
	st.Transcript = append(st.Transcript, userMsg)
	st.Hint = ""
	st.UpdatedAt = userMsg.Timestamp

	outcome := evaluator.Evaluate(text)
	st.Typing = !outcome.Terminal()
	epoch := st.Epoch
	transcript := cloneMessages(st.Transcript)
	callCtx, cancel := m.beginCall(ctx)
	m.mu.Unlock()
	defer cancel()

	m.notify("message", m.deps.Notifier.PublishMessage(ctx, st.ID, userMsg))

	if outcome.Terminal() {
		m.pause(callCtx)
		return m.conclude(ctx, epoch, outcome), nil
	}

	m.notify("typing", m.deps.Notifier.PublishTyping(ctx, st.ID, true))
	reply, ok := m.generate(callCtx, ReplyRequest{
		Transcript: transcript,
		Persona:    cfg.ScammerPersona,
		Goal:       cfg.Goal,
		Params:     m.deps.Params,
	})
	m.pause(callCtx)

	m.mu.Lock()
	if m.stale(epoch) {
		snap := m.state.Clone()
		m.mu.Unlock()
		m.logger.Debug("Discarding late reply", "epoch", epoch, "current_epoch", snap.Epoch)
		return snap, nil
	}

	if !ok {
		reply = FallbackReplies[m.deps.Random.IntN(len(FallbackReplies))]
	}
	replyMsg := chat.NewMessage(chat.SenderScammer, reply, m.deps.Now())
	if cfg.Difficulty > blurMinDifficulty && m.deps.Random.Float64() > blurThreshold {
		replyMsg.Text = BlurredText
		replyMsg.IsBlurred = true
	}
	st.Transcript = append(st.Transcript, replyMsg)
	st.Typing = false
	if priorLen > hintMinTranscript && m.deps.Random.Float64() > hintThreshold {
		st.Hint = scenario.HintFor(cfg)
	}
	st.UpdatedAt = replyMsg.Timestamp
	snap := st.Clone()
	m.mu.Unlock()

	m.notify("typing", m.deps.Notifier.PublishTyping(ctx, snap.ID, false))
	m.notify("message", m.deps.Notifier.PublishMessage(ctx, snap.ID, replyMsg))
	if snap.Hint != "" {
		m.notify("hint", m.deps.Notifier.PublishHint(ctx, snap.ID, snap.Hint))
	}
	return snap, nil
}

// Act performs one of the direct chat actions. It never consults the generator.
func (m *Machine) Act(ctx context.Context, action string) (*State, error) {
	outcome, ok := evaluator.EvaluateAction(evaluator.ParseAction(action))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	m.mu.Lock()
	if m.state.Status != StatusPlaying {
		m.mu.Unlock()
		return nil, ErrNotPlaying
	}
	if scenario.Get(m.state.ScenarioID).IsMarket() {
		m.mu.Unlock()
		return nil, ErrWrongScenario
	}
	m.cancelInFlight()
	snap := m.finish(outcome)
	m.mu.Unlock()

	m.logger.Info("Direct action taken", "action", action, "verdict", outcome.Verdict)
	m.publishFinished(ctx, snap)
	return snap, nil
}

// Pay hands over the money. It always loses.
func (m *Machine) Pay(ctx context.Context) (*State, error) {
	return m.marketTurn(ctx, market.ActionPay, m.market.Pay)
}

// RequestDrain asks the vendor to drain the water bag.
func (m *Machine) RequestDrain(ctx context.Context) (*State, error) {
	return m.marketTurn(ctx, market.ActionDrain, m.market.RequestDrain)
}

// RequestScaleCheck weighs a known object on the vendor's scale.
func (m *Machine) RequestScaleCheck(ctx context.Context) (*State, error) {
	return m.marketTurn(ctx, market.ActionCheckScale, m.market.RequestScaleCheck)
}

// MarketAction dispatches a market action by name.
func (m *Machine) MarketAction(ctx context.Context, action market.Action) (*State, error) {
	switch action {
	case market.ActionPay:
		return m.Pay(ctx)
	case market.ActionDrain:
		return m.RequestDrain(ctx)
	case market.ActionCheckScale:
		return m.RequestScaleCheck(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

type marketOp func(context.Context, *market.State) evaluator.Outcome

func (m *Machine) marketTurn(ctx context.Context, action market.Action, op marketOp) (*State, error) {
	m.turn.Lock()
	defer m.turn.Unlock()

	m.mu.Lock()
	st := m.state
	if st.Status != StatusPlaying {
		m.mu.Unlock()
		return nil, ErrNotPlaying
	}
	if !scenario.Get(st.ScenarioID).IsMarket() || st.Market == nil {
		m.mu.Unlock()
		return nil, ErrWrongScenario
	}
	stall := st.Market.Clone()
	epoch := st.Epoch
	st.Typing = true
	callCtx, cancel := m.beginCall(ctx)
	m.mu.Unlock()
	defer cancel()

	outcome := op(callCtx, stall)
	m.pause(callCtx)

	m.mu.Lock()
	if m.stale(epoch) {
		snap := m.state.Clone()
		m.mu.Unlock()
		m.logger.Debug("Discarding late vendor reaction", "action", action, "epoch", epoch)
		return snap, nil
	}
	st.Market = stall
	st.Typing = false
	st.UpdatedAt = m.deps.Now()
	var snap *State
	if outcome.Terminal() {
		snap = m.finish(outcome)
	} else {
		snap = st.Clone()
	}
	m.mu.Unlock()

	m.logger.Debug("Market action resolved", "action", action, "mood", stall.VendorMood, "verdict", outcome.Verdict)
	m.notify("market", m.deps.Notifier.PublishMarket(ctx, snap.ID, snap.Market))
	if outcome.Terminal() {
		m.publishFinished(ctx, snap)
	}
	return snap, nil
}

// conclude applies a terminal outcome unless the session moved on meanwhile.
func (m *Machine) conclude(ctx context.Context, epoch uint64, outcome evaluator.Outcome) *State {
	m.mu.Lock()
	if m.stale(epoch) {
		snap := m.state.Clone()
		m.mu.Unlock()
		m.logger.Debug("Discarding late verdict", "epoch", epoch, "verdict", outcome.Verdict)
		return snap
	}
	snap := m.finish(outcome)
	m.mu.Unlock()

	m.logger.Info("Scenario finished", "scenario_id", snap.ScenarioID, "status", snap.Status, "score", snap.Score)
	m.publishFinished(ctx, snap)
	return snap
}

// finish must be called with mu held.
func (m *Machine) finish(outcome evaluator.Outcome) *State {
	st := m.state
	switch outcome.Verdict {
	case evaluator.Win:
		st.Status = StatusWon
		st.Score += WinPoints
	case evaluator.Lose:
		st.Status = StatusLost
	}
	st.Feedback = outcome.Message
	st.Typing = false
	st.UpdatedAt = m.deps.Now()
	return st.Clone()
}

// stale must be called with mu held.
func (m *Machine) stale(epoch uint64) bool {
	return m.state.Epoch != epoch || m.state.Status != StatusPlaying
}

// beginCall must be called with mu held.
func (m *Machine) beginCall(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	m.inflight = cancel
	return callCtx, cancel
}

// cancelInFlight must be called with mu held.
func (m *Machine) cancelInFlight() {
	if m.inflight != nil {
		m.inflight()
		m.inflight = nil
	}
}

func (m *Machine) generate(ctx context.Context, req ReplyRequest) (string, bool) {
	if m.deps.Generator == nil {
		return "", false
	}
	if m.deps.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.deps.CallTimeout)
		defer cancel()
	}

	reply, err := m.deps.Generator.GenerateReply(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("Reply generation cancelled")
		} else {
			m.logger.Warn("Reply generation failed, using fallback", "error", err)
		}
		return "", false
	}
	reply = strings.TrimSpace(reply)
	if !usableReply(reply) {
		m.logger.Warn("Unusable reply, using fallback", "reply", reply)
		return "", false
	}
	return reply, true
}

func usableReply(s string) bool {
	return s != "" && s != "..." && utf8.RuneCountInString(s) >= 2
}

func (m *Machine) pause(ctx context.Context) {
	if m.deps.ThinkDelay <= 0 {
		return
	}
	t := time.NewTimer(m.deps.ThinkDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (m *Machine) publishStarted(ctx context.Context, snap *State) {
	m.notify("status", m.deps.Notifier.PublishStatus(ctx, snap.ID, string(snap.Status), "", snap.Score))
	for _, msg := range snap.Transcript {
		m.notify("message", m.deps.Notifier.PublishMessage(ctx, snap.ID, msg))
	}
	if snap.Market != nil {
		m.notify("market", m.deps.Notifier.PublishMarket(ctx, snap.ID, snap.Market))
	}
}

func (m *Machine) publishFinished(ctx context.Context, snap *State) {
	m.notify("status", m.deps.Notifier.PublishStatus(ctx, snap.ID, string(snap.Status), snap.Feedback, snap.Score))
}

func (m *Machine) notify(kind string, err error) {
	if err != nil {
		m.logger.Warn("Failed to publish session event", "event", kind, "error", err)
	}
}

func cloneMessages(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out
}
