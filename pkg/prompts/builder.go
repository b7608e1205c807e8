package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

// Builder constructs the LLM messages for a scammer turn using a fluent interface.
type Builder struct {
	persona      string
	goal         string
	transcript   []chat.Message
	historyLimit int
}

// New creates a builder that sends the whole transcript.
func New() *Builder {
	return &Builder{}
}

// WithPersona sets who the model is playing.
func (b *Builder) WithPersona(persona string) *Builder {
	b.persona = persona
	return b
}

// WithGoal sets what the scammer is trying to achieve.
func (b *Builder) WithGoal(goal string) *Builder {
	b.goal = goal
	return b
}

// WithTranscript sets the conversation so far, including the latest player message.
func (b *Builder) WithTranscript(transcript []chat.Message) *Builder {
	b.transcript = transcript
	return b
}

// WithHistoryLimit keeps only the last n transcript entries. Zero means no limit.
func (b *Builder) WithHistoryLimit(n int) *Builder {
	b.historyLimit = n
	return b
}

// Build returns a system message with the persona rules followed by a user
// message carrying the formatted history.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if strings.TrimSpace(b.persona) == "" {
		return nil, fmt.Errorf("persona is required")
	}

	system, err := render(scammerSystemTmpl, struct{ Persona, Goal string }{b.persona, b.goal})
	if err != nil {
		return nil, fmt.Errorf("error rendering system prompt: %w", err)
	}

	history := b.transcript
	if b.historyLimit > 0 && len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}
	turn, err := render(scammerTurnTmpl, struct{ History string }{FormatHistory(history)})
	if err != nil {
		return nil, fmt.Errorf("error rendering turn prompt: %w", err)
	}

	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: system},
		{Role: chat.ChatRoleUser, Content: turn},
	}, nil
}

// BuildVendor returns the single prompt asking the vendor to react to what
// the customer just said. The model is expected to answer with JSON.
func BuildVendor(utterance, mood string) ([]chat.ChatMessage, error) {
	content, err := render(vendorTmpl, struct{ Utterance, Mood string }{utterance, mood})
	if err != nil {
		return nil, fmt.Errorf("error rendering vendor prompt: %w", err)
	}
	return []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: content}}, nil
}
