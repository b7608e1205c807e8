package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiService implements LLMService for Google Gemini.
type GeminiService struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// NewGeminiService connects a Gemini client. Extra options are passed to the
// underlying client (endpoint overrides, custom HTTP clients).
func NewGeminiService(ctx context.Context, apiKey, modelName string, logger *slog.Logger, opts ...option.ClientOption) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (g *GeminiService) Provider() string {
	return "gemini"
}

// Close releases the client connection.
func (g *GeminiService) Close() error {
	return g.client.Close()
}

// Chat sends the conversation as a chat session. A model handle is built per
// call because its settings are mutable and calls may run concurrently.
func (g *GeminiService) Chat(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	system, conversation := splitChatMessages(messages)
	if len(conversation) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	model := g.client.GenerativeModel(g.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if opts.Temperature > 0 {
		model.SetTemperature(float32(opts.Temperature))
	}
	if opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}
	if opts.JSON {
		model.ResponseMIMEType = "application/json"
	}

	history, last := toGeminiHistory(conversation)
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := responseText(resp)
	g.logger.Debug("Gemini response received", "model", g.modelName, "chars", len(text))
	return text, nil
}

// toGeminiHistory converts all but the final message to Gemini contents and
// returns the final message text separately.
func toGeminiHistory(messages []chat.ChatMessage) ([]*genai.Content, string) {
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == chat.ChatRoleAgent {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history, messages[len(messages)-1].Content
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text string
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			}
		}
	}
	return text
}
