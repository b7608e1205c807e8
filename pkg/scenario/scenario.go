package scenario

import "strings"

// ID identifies a scenario in the catalog.
type ID string

const (
	Market            ID = "MARKET"
	ChatRebate        ID = "CHAT_REBATE"
	ChatImpersonation ID = "CHAT_IMPERSONATION"
	ChatCrypto        ID = "CHAT_CRYPTO"
	ChatService       ID = "CHAT_SERVICE"
)

// ParseID normalizes a user supplied identifier ("chat-rebate", " chat_rebate ")
// to its canonical form. Unknown identifiers are returned normalized but otherwise
// untouched; Get resolves them to the placeholder config.
func ParseID(s string) ID {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "_")
	return ID(strings.ToUpper(s))
}

// Platform is the UI theme hint for a chat scenario.
type Platform string

const (
	PlatformWeChat  Platform = "wechat"
	PlatformSMS     Platform = "sms"
	PlatformDating  Platform = "dating"
	PlatformService Platform = "service"
)

// Kind selects which engine drives a scenario.
type Kind string

const (
	KindChat   Kind = "chat"
	KindMarket Kind = "market"
)

// Config is the immutable description of one fraud simulation setting.
type Config struct {
	ID             ID       `json:"id" yaml:"id"`
	Kind           Kind     `json:"kind" yaml:"kind"`
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description,omitempty" yaml:"description"` // menu card blurb
	InitialMessage string   `json:"initial_message" yaml:"initial_message"`
	ScammerPersona string   `json:"scammer_persona" yaml:"scammer_persona"`
	Goal           string   `json:"goal" yaml:"goal"`             // what the antagonist is after
	Difficulty     int      `json:"difficulty" yaml:"difficulty"` // 1-5 stars
	Platform       Platform `json:"platform" yaml:"platform"`
}

// IsMarket reports whether the scenario is driven by the market engine.
func (c Config) IsMarket() bool {
	return c.Kind == KindMarket
}
