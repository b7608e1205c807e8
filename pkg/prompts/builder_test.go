package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

func transcript() []chat.Message {
	now := time.Now()
	return []chat.Message{
		chat.NewMessage(chat.SenderScammer, "你好，我是京东客服。", now),
		chat.NewMessage(chat.SenderUser, "你是谁？", now),
		chat.NewMessage(chat.SenderMascot, "小心！", now),
		chat.NewMessage(chat.SenderSystem, "提示", now),
		chat.NewMessage(chat.SenderScammer, "您的账户有风险。", now),
	}
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory(transcript())
	want := "骗子: 你好，我是京东客服。\n受害者: 你是谁？\n骗子: 您的账户有风险。"
	if got != want {
		t.Errorf("FormatHistory() =\n%q\nwant\n%q", got, want)
	}

	if FormatHistory(nil) != "" {
		t.Error("Expected empty history for nil transcript")
	}
}

func TestBuilder_Build(t *testing.T) {
	msgs, err := New().
		WithPersona("京东金融客服专员").
		WithGoal("诱导受害者下载会议软件开启屏幕共享").
		WithTranscript(transcript()).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}

	if msgs[0].Role != chat.ChatRoleSystem {
		t.Errorf("Expected system role first, got %s", msgs[0].Role)
	}
	for _, want := range []string{"京东金融客服专员", "屏幕共享", "绝对不要透露你是AI"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("System prompt missing %q", want)
		}
	}

	if msgs[1].Role != chat.ChatRoleUser {
		t.Errorf("Expected user role second, got %s", msgs[1].Role)
	}
	if !strings.Contains(msgs[1].Content, "受害者: 你是谁？") {
		t.Error("Turn prompt missing formatted history")
	}
	if strings.Contains(msgs[1].Content, "小心！") {
		t.Error("Mascot messages must not reach the model")
	}
	if !strings.HasSuffix(msgs[1].Content, "(不要只输出省略号):") {
		t.Errorf("Turn prompt should end with the reply instruction, got %q", msgs[1].Content)
	}
}

func TestBuilder_HistoryLimit(t *testing.T) {
	msgs, err := New().WithPersona("骗子").WithTranscript(transcript()).WithHistoryLimit(1).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if strings.Contains(msgs[1].Content, "京东客服") {
		t.Error("Expected older messages to be windowed out")
	}
	if !strings.Contains(msgs[1].Content, "您的账户有风险。") {
		t.Error("Expected latest message to be kept")
	}
}

func TestBuilder_RequiresPersona(t *testing.T) {
	if _, err := New().WithTranscript(transcript()).Build(); err == nil {
		t.Error("Expected error when persona is missing")
	}
}

func TestBuildVendor(t *testing.T) {
	msgs, err := BuildVendor("我这有个手机我知道多重，放你秤上试试准不准。", "suspicious")
	if err != nil {
		t.Fatalf("BuildVendor() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != chat.ChatRoleUser {
		t.Fatalf("Expected one user message, got %+v", msgs)
	}
	for _, want := range []string{"当前情绪: suspicious", "放你秤上试试准不准", "newMood"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("Vendor prompt missing %q", want)
		}
	}
}
