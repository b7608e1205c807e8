package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultOpenAITemperature = 0.7
	DefaultOpenAIMaxTokens   = 512
)

// OpenAIService implements LLMService for any OpenAI-compatible chat
// completions endpoint (OpenAI, Venice, a local Ollama /v1).
type OpenAIService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

type OpenAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []chat.ChatMessage    `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

type OpenAIChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates a client. An empty baseURL targets api.openai.com.
func NewOpenAIService(apiKey, modelName, baseURL string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	return &OpenAIService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (o *OpenAIService) Provider() string {
	return "openai"
}

// Chat makes a chat completion request.
func (o *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	request := OpenAIChatRequest{
		Model:       o.modelName,
		Messages:    messages,
		Temperature: DefaultOpenAITemperature,
		MaxTokens:   DefaultOpenAIMaxTokens,
	}
	if opts.Temperature > 0 {
		request.Temperature = opts.Temperature
	}
	if opts.MaxOutputTokens > 0 {
		request.MaxTokens = opts.MaxOutputTokens
	}
	if opts.JSON {
		request.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp OpenAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from API")
	}

	choice := chatResp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused to respond: %s", choice.Message.Refusal)
	}

	o.logger.Debug("OpenAI response received", "model", chatResp.Model, "finish_reason", choice.FinishReason)
	return choice.Message.Content, nil
}
