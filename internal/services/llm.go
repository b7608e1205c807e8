package services

import (
	"context"
	"strings"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

// GenerateOptions are per-call sampling settings. Zero values use the
// provider's defaults.
type GenerateOptions struct {
	MaxOutputTokens int
	Temperature     float64
	JSON            bool // ask the provider for a JSON-only response
}

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// Chat sends role-tagged messages and returns the model's text reply.
	Chat(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error)

	// Provider names the backend, for health reporting.
	Provider() string
}

// splitChatMessages extracts and combines all system messages into a single system prompt
// and returns the remaining non-system messages
func splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var systemParts []string
	var nonSystemMessages []chat.ChatMessage

	for _, msg := range messages {
		if msg.Role == chat.ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	return strings.Join(systemParts, "\n\n"), nonSystemMessages
}
