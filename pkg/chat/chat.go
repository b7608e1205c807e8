package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser    Sender = "user"
	SenderScammer Sender = "scammer"
	SenderSystem  Sender = "system"
	SenderMascot  Sender = "mascot"
)

// Message is a single entry in a session transcript.
// Messages are never mutated after they are appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	IsBlurred bool      `json:"is_blurred,omitempty"` // sensitive-content placeholder
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(sender Sender, text string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: at,
	}
}

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Scammer or vendor
	ChatRoleSystem = "system"    // Persona and rules
)

// ChatMessage is the role-tagged message format sent to LLM providers.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// MaxMessageLength is the longest player utterance accepted, in runes.
const MaxMessageLength = 1000

// ChatRequest is a player utterance sent to the sessions API.
type ChatRequest struct {
	Message string `json:"message"`
}

func (cr *ChatRequest) Validate() error {
	if strings.TrimSpace(cr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if n := utf8.RuneCountInString(cr.Message); n > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters (got %d)", MaxMessageLength, n)
	}
	return nil
}

// ActionRequest invokes one of the direct chat actions.
type ActionRequest struct {
	Action string `json:"action"`
}

func (ar *ActionRequest) Validate() error {
	if strings.TrimSpace(ar.Action) == "" {
		return fmt.Errorf("action cannot be empty")
	}
	return nil
}

// StartRequest selects the scenario to play.
type StartRequest struct {
	Scenario string `json:"scenario"`
}
