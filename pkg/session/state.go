package session

import (
	"time"

	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
	"github.com/jwebster45206/scam-sim/pkg/scenario"
)

// Status is the lifecycle position of a session.
type Status string

const (
	StatusMenu    Status = "menu"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Terminal reports whether play has ended with a result.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// WinPoints is added to the score for every win.
const WinPoints = 100

// State is everything the UI needs to render a session.
type State struct {
	ID         string         `json:"id"`
	ScenarioID scenario.ID    `json:"scenario_id,omitempty"`
	Status     Status         `json:"status"`
	Transcript []chat.Message `json:"transcript"`
	Feedback   string         `json:"feedback,omitempty"`
	Score      int            `json:"score"`
	Hint       string         `json:"hint,omitempty"`
	Market     *market.State  `json:"market,omitempty"`
	Typing     bool           `json:"typing"`
	Epoch      uint64         `json:"epoch"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.Transcript != nil {
		c.Transcript = make([]chat.Message, len(s.Transcript))
		copy(c.Transcript, s.Transcript)
	}
	c.Market = s.Market.Clone()
	return &c
}

// QuickRepliesAvailable reports whether the canned replies should be offered.
func (s *State) QuickRepliesAvailable() bool {
	return s.Status == StatusPlaying && len(s.Transcript) < scenario.QuickReplyLimit
}
