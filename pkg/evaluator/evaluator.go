// Package evaluator classifies player input into win, lose or continue.
//
// Classification is plain substring matching over fixed vocabularies. It is
// easy to defeat with paraphrase and can fire on incidental substrings; that
// behaviour is the contract the game is built on.
package evaluator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Verdict is the result class of an evaluation.
type Verdict string

const (
	Continue Verdict = "continue"
	Win      Verdict = "win"
	Lose     Verdict = "lose"
)

// Outcome is a verdict plus the educational feedback shown to the player.
// Message is empty for Continue.
type Outcome struct {
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message,omitempty"`
}

// Terminal reports whether the outcome ends active play.
func (o Outcome) Terminal() bool {
	return o.Verdict == Win || o.Verdict == Lose
}

const (
	WinMessage  = "你成功保持了警惕并识破了骗局！对于任何转账要求，核实身份是第一位的。"
	LoseMessage = "【警报】你泄露了敏感信息或进行了转账操作！在真实场景中，资金可能已经被转移。"
)

// ProtectiveTerms end the game in the player's favour: report to police,
// police, scammer, fake, block, disbelief, verify.
var ProtectiveTerms = []string{"报警", "警察", "骗子", "假的", "拉黑", "不信", "核实"}

// CompromisingTerms end the game as a loss: transfer, wire, card number,
// payment, password, verification code, screen sharing.
var CompromisingTerms = []string{"转账", "汇款", "卡号", "支付", "密码", "验证码", "屏幕共享"}

// Evaluate classifies a free-text utterance. Protective terms are checked
// before compromising terms, so an utterance containing both is a win.
func Evaluate(utterance string) Outcome {
	text := Normalize(utterance)

	if containsAny(text, ProtectiveTerms) {
		return Outcome{Verdict: Win, Message: WinMessage}
	}
	if containsAny(text, CompromisingTerms) {
		return Outcome{Verdict: Lose, Message: LoseMessage}
	}
	return Outcome{Verdict: Continue}
}

// Normalize case-folds the text and folds full-width forms to their
// half-width equivalents so "ＰＡＹ" and "pay" compare equal.
func Normalize(s string) string {
	s = width.Fold.String(s)
	return cases.Fold().String(s)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
