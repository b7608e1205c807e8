package chat

import (
	"strings"
	"testing"
	"time"
)

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid short message",
			req:     ChatRequest{Message: "你是谁？"},
			wantErr: false,
		},
		{
			name:    "valid message at max length",
			req:     ChatRequest{Message: strings.Repeat("好", MaxMessageLength)},
			wantErr: false,
		},
		{
			name:    "message too long",
			req:     ChatRequest{Message: strings.Repeat("好", MaxMessageLength+1)},
			wantErr: true,
			errMsg:  "exceeds maximum length",
		},
		{
			name:    "empty message",
			req:     ChatRequest{Message: ""},
			wantErr: true,
			errMsg:  "cannot be empty",
		},
		{
			name:    "whitespace only",
			req:     ChatRequest{Message: "   \n\t"},
			wantErr: true,
			errMsg:  "cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
				}
			}
		})
	}
}

func TestActionRequest_Validate(t *testing.T) {
	if err := (&ActionRequest{Action: "report_block"}).Validate(); err != nil {
		t.Errorf("Expected valid action, got %v", err)
	}
	if err := (&ActionRequest{Action: " "}).Validate(); err == nil {
		t.Error("Expected error for blank action")
	}
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewMessage(SenderUser, "hello", at)
	b := NewMessage(SenderUser, "hello", at)

	if a.ID == "" || b.ID == "" {
		t.Fatal("Expected message IDs to be set")
	}
	if a.ID == b.ID {
		t.Errorf("Expected unique IDs, both were %s", a.ID)
	}
	if a.IsBlurred {
		t.Error("New messages should not be blurred")
	}
	if !a.Timestamp.Equal(at) {
		t.Errorf("Expected timestamp %v, got %v", at, a.Timestamp)
	}
}
