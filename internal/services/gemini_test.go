package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

func TestNewGeminiService_RequiresKey(t *testing.T) {
	_, err := NewGeminiService(context.Background(), "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Error("Expected error without API key")
	}
}

func TestToGeminiHistory(t *testing.T) {
	history, last := toGeminiHistory([]chat.ChatMessage{
		{Role: chat.ChatRoleUser, Content: "你好"},
		{Role: chat.ChatRoleAgent, Content: "亲，在的"},
		{Role: chat.ChatRoleUser, Content: "怎么操作？"},
	})

	if last != "怎么操作？" {
		t.Errorf("Expected last message to be sent separately, got %q", last)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Errorf("Unexpected roles: %s, %s", history[0].Role, history[1].Role)
	}
	if txt, ok := history[1].Parts[0].(genai.Text); !ok || string(txt) != "亲，在的" {
		t.Errorf("Unexpected part: %#v", history[1].Parts[0])
	}

	history, last = toGeminiHistory([]chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "only"}})
	if len(history) != 0 || last != "only" {
		t.Errorf("Expected empty history for single message, got %d, %q", len(history), last)
	}
}

func TestResponseText(t *testing.T) {
	if responseText(nil) != "" {
		t.Error("Expected empty text for nil response")
	}

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("你好，"), genai.Text("我是客服。")}},
		}},
	}
	if got := responseText(resp); got != "你好，我是客服。" {
		t.Errorf("Expected joined parts, got %q", got)
	}

	empty := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
	if responseText(empty) != "" {
		t.Error("Expected empty text for candidate without content")
	}
}
