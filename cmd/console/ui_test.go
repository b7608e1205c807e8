package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/scam-sim/internal/handlers"
	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/session"
)

func TestRenderMessage_Blurred(t *testing.T) {
	msg := chat.NewMessage(chat.SenderScammer, session.BlurredText, time.Now())
	msg.IsBlurred = true

	out := renderMessage(msg, 60)
	if !strings.Contains(out, "[已模糊]") {
		t.Errorf("Expected blur marker, got %q", out)
	}

	plain := renderMessage(chat.NewMessage(chat.SenderUser, "你好", time.Now()), 60)
	if strings.Contains(plain, "[已模糊]") {
		t.Errorf("Unexpected blur marker in %q", plain)
	}
}

func TestWrapText_CJK(t *testing.T) {
	long := strings.Repeat("骗", 50)
	out := wrapText(long, 20)
	if !strings.Contains(out, "\n") {
		t.Errorf("Expected hard wrap of text without spaces, got %q", out)
	}
}

func TestScaleReadout(t *testing.T) {
	st := market.NewState()
	out := scaleReadout(st)
	if !strings.Contains(out, "1.20") || !strings.Contains(out, "60") {
		t.Errorf("Unexpected readout %q", out)
	}

	st.Drain()
	if out := scaleReadout(st); !strings.Contains(out, "水已倒掉") {
		t.Errorf("Expected drained bag in %q", out)
	}
}

func TestScreenFor(t *testing.T) {
	tests := []struct {
		name string
		st   *session.State
		want screen
	}{
		{"menu", &session.State{Status: session.StatusMenu}, screenMenu},
		{"chat", &session.State{Status: session.StatusPlaying}, screenChat},
		{"market", &session.State{Status: session.StatusPlaying, Market: market.NewState()}, screenMarket},
		{"won", &session.State{Status: session.StatusWon}, screenResult},
		{"lost market", &session.State{Status: session.StatusLost, Market: market.NewState()}, screenResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := screenFor(&handlers.SessionResponse{State: tt.st}); got != tt.want {
				t.Errorf("screenFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConsoleUI_ResultKeys(t *testing.T) {
	ui := NewConsoleUI(&apiClient{})
	ui.ready = true
	ui.loading = false
	ui.applySession(&handlers.SessionResponse{State: &session.State{
		ID:       "s1",
		Status:   session.StatusWon,
		Feedback: "做得好",
	}})

	// Retry is only offered after a loss.
	model, cmd := ui.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Error("Expected no command for retry after a win")
	}
	if model.(ConsoleUI).loading {
		t.Error("Expected no request in flight")
	}

	if !strings.Contains(model.View(), "防骗成功") {
		t.Error("Expected win banner in view")
	}
}
