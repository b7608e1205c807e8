package evaluator

import (
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      Verdict
	}{
		{name: "threaten police", utterance: "我要报警了", want: Win},
		{name: "call out scammer", utterance: "你就是个骗子吧", want: Win},
		{name: "disbelief", utterance: "我不信，除非你视频。", want: Win},
		{name: "verify identity", utterance: "真的吗？我要核实一下。", want: Win},
		{name: "block contact", utterance: "再说我就拉黑你", want: Win},
		{name: "agree to transfer", utterance: "好的，我转账", want: Lose},
		{name: "share password", utterance: "我的密码是123456", want: Lose},
		{name: "share verification code", utterance: "验证码是 8842", want: Lose},
		{name: "open screen sharing", utterance: "屏幕共享已经打开了", want: Lose},
		{name: "give card number", utterance: "卡号发你了", want: Lose},
		{name: "neutral question", utterance: "你是谁？", want: Continue},
		{name: "empty", utterance: "", want: Continue},
		{name: "small talk", utterance: "今天天气不错", want: Continue},
		{name: "both vocabularies win", utterance: "我不会转账的，我要报警", want: Win},
		{name: "both vocabularies reversed order", utterance: "转账之前我要先核实", want: Win},
		{name: "incidental substring still matches", utterance: "支付宝今天打折", want: Lose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.utterance)
			if got.Verdict != tt.want {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.utterance, got.Verdict, tt.want)
			}
		})
	}
}

func TestEvaluate_Messages(t *testing.T) {
	win := Evaluate("我要报警了")
	if win.Message != WinMessage {
		t.Errorf("Expected win message %q, got %q", WinMessage, win.Message)
	}
	if !win.Terminal() {
		t.Error("Win should be terminal")
	}

	lose := Evaluate("好的，我转账")
	if lose.Message != LoseMessage {
		t.Errorf("Expected lose message %q, got %q", LoseMessage, lose.Message)
	}

	cont := Evaluate("你好")
	if cont.Message != "" || cont.Terminal() {
		t.Errorf("Continue should carry no message and not be terminal, got %+v", cont)
	}
}

// Every protective term wins on its own, and keeps winning when paired with
// any compromising term.
func TestEvaluate_VocabularyProperties(t *testing.T) {
	for _, p := range ProtectiveTerms {
		if got := Evaluate("嗯" + p + "吧"); got.Verdict != Win {
			t.Errorf("protective term %q: got %s", p, got.Verdict)
		}
		for _, c := range CompromisingTerms {
			if got := Evaluate(c + "，" + p); got.Verdict != Win {
				t.Errorf("%q with %q: got %s, want win", c, p, got.Verdict)
			}
		}
	}
	for _, c := range CompromisingTerms {
		if got := Evaluate("那我" + c); got.Verdict != Lose {
			t.Errorf("compromising term %q: got %s", c, got.Verdict)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC", "abc"},
		{"ＡＢＣ", "abc"},
		{"报警", "报警"},
		{"ＥＴＨ 转账", "eth 转账"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEvaluateAction(t *testing.T) {
	tests := []struct {
		action Action
		want   Verdict
		ok     bool
	}{
		{ActionReportBlock, Win, true},
		{ActionVideoCall, Lose, true},
		{ActionTransferNow, Lose, true},
		{Action("dance"), "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			got, ok := EvaluateAction(tt.action)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s", got.Verdict, tt.want)
			}
			if ok && got.Message == "" {
				t.Error("expected a feedback message")
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	if got := ParseAction(" Report-Block "); got != ActionReportBlock {
		t.Errorf("ParseAction = %q, want %q", got, ActionReportBlock)
	}
	if got := ParseAction("TRANSFER_NOW"); got != ActionTransferNow {
		t.Errorf("ParseAction = %q, want %q", got, ActionTransferNow)
	}
}
