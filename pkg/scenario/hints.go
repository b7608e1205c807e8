package scenario

import "strings"

const (
	hintScreenShare = "警惕！正规客服绝不会让你下载会议软件开启“屏幕共享”。一旦开启，你的验证码和密码都会被对方看见！"
	hintInvestment  = "注意！“内部消息”、“稳赚不赔”都是假象。网络恋人带你理财，就是典型的“杀猪盘”！"
	hintSafeAccount = "小心！如果对方让你转账到“安全账户”或“解冻账户”，百分之百是诈骗！"
)

// HintFor picks the mascot hint matching the scenario's goal.
func HintFor(c Config) string {
	switch {
	case strings.Contains(c.Goal, "屏幕"):
		return hintScreenShare
	case strings.Contains(c.Goal, "投资"):
		return hintInvestment
	default:
		return hintSafeAccount
	}
}
