package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	ChatFunc func(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error)

	// Track calls for testing
	ChatCalls []ChatCall

	mu sync.Mutex // protects all fields above
}

type ChatCall struct {
	Messages []chat.ChatMessage
	Options  GenerateOptions
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		ChatCalls: make([]ChatCall, 0),
	}
}

func (m *MockLLMAPI) Provider() string {
	return "mock"
}

// Chat mocks response generation
func (m *MockLLMAPI) Chat(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: messages, Options: opts})
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, opts)
	}

	// Default behavior: a vendor-shaped JSON body when JSON was requested
	if opts.JSON {
		return `{"text":"我的秤绝对准！","newMood":"suspicious"}`, nil
	}
	return "Mock response", nil
}

// SetResponse sets up the mock to always return text
func (m *MockLLMAPI) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
		return text, nil
	}
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage, opts GenerateOptions) (string, error) {
		return "", err
	}
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls = make([]ChatCall, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ChatCall, len(m.ChatCalls))
	copy(calls, m.ChatCalls)
	return calls
}
