package evaluator

import "strings"

// Action is a UI affordance that ends a chat immediately, bypassing text evaluation.
type Action string

const (
	ActionReportBlock Action = "report_block"
	ActionVideoCall   Action = "video_call"
	ActionTransferNow Action = "transfer_now"
)

var actionOutcomes = map[Action]Outcome{
	ActionReportBlock: {Verdict: Win, Message: "成功拉黑并举报！你做得对，对于可疑人员直接拉黑是最好的保护。"},
	ActionVideoCall:   {Verdict: Lose, Message: "你接受了视频通话，对方使用AI换脸技术骗取了你的信任！"},
	ActionTransferNow: {Verdict: Lose, Message: "你进行了转账操作！资金瞬间被转移，追回难度极大。"},
}

// ParseAction normalizes an action name ("Report-Block" -> report_block).
func ParseAction(s string) Action {
	s = strings.ToLower(strings.TrimSpace(s))
	return Action(strings.ReplaceAll(s, "-", "_"))
}

// EvaluateAction returns the fixed outcome of a direct action.
// ok is false for actions that do not exist.
func EvaluateAction(a Action) (Outcome, bool) {
	o, ok := actionOutcomes[a]
	return o, ok
}
