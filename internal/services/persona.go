package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/prompts"
	"github.com/jwebster45206/scam-sim/pkg/session"
	"github.com/jwebster45206/scam-sim/pkg/textfilter"
)

// PersonaService plays the scammer and the market vendor on top of an LLMService.
// Replies are passed through a textfilter.Sanitizer before use.
type PersonaService struct {
	llm          LLMService
	filter       *textfilter.Sanitizer
	historyLimit int
	logger       *slog.Logger
}

// PersonaOption configures a PersonaService.
type PersonaOption func(*PersonaService)

// WithHistoryLimit caps how many of the latest transcript entries are sent to
// the model. Zero sends the whole transcript.
func WithHistoryLimit(n int) PersonaOption {
	return func(p *PersonaService) { p.historyLimit = n }
}

var (
	_ session.Generator = (*PersonaService)(nil)
	_ market.Reactor    = (*PersonaService)(nil)
)

func NewPersonaService(llm LLMService, logger *slog.Logger, opts ...PersonaOption) *PersonaService {
	p := &PersonaService{
		llm:    llm,
		filter: textfilter.NewSanitizer(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateReply asks the model for the scammer's next line.
func (p *PersonaService) GenerateReply(ctx context.Context, req session.ReplyRequest) (string, error) {
	messages, err := prompts.New().
		WithPersona(req.Persona).
		WithGoal(req.Goal).
		WithTranscript(req.Transcript).
		WithHistoryLimit(p.historyLimit).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build scammer prompt: %w", err)
	}

	reply, err := p.llm.Chat(ctx, messages, GenerateOptions{
		MaxOutputTokens: req.Params.MaxOutputTokens,
		Temperature:     req.Params.Temperature,
	})
	if err != nil {
		return "", err
	}
	if p.filter.ContainsContactDetails(reply) {
		p.logger.Debug("Masked contact details in generated reply")
	}
	return p.filter.Clean(reply), nil
}

// React asks the model how the vendor responds to a customer action.
func (p *PersonaService) React(ctx context.Context, action market.Action, mood market.Mood) (market.Reaction, error) {
	messages, err := prompts.BuildVendor(action.Utterance(), string(mood))
	if err != nil {
		return market.Reaction{}, fmt.Errorf("failed to build vendor prompt: %w", err)
	}

	raw, err := p.llm.Chat(ctx, messages, GenerateOptions{JSON: true})
	if err != nil {
		return market.Reaction{}, err
	}

	var r market.Reaction
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &r); err != nil {
		p.logger.Debug("Unparseable vendor reaction", "raw", raw)
		return market.Reaction{}, fmt.Errorf("failed to parse vendor reaction: %w", err)
	}
	r.Text = p.filter.Clean(r.Text)
	return r, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
