package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/scam-sim/pkg/scenario"
)

func TestScenarioHandler_List(t *testing.T) {
	handler := NewScenarioHandler(testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp ScenarioListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Scenarios) != len(scenario.List()) {
		t.Errorf("Expected %d scenarios, got %d", len(scenario.List()), len(resp.Scenarios))
	}
	if len(resp.QuickReplies) != 4 {
		t.Errorf("Expected 4 quick replies, got %d", len(resp.QuickReplies))
	}
	if resp.QuickReplyLimit != scenario.QuickReplyLimit {
		t.Errorf("Expected limit %d, got %d", scenario.QuickReplyLimit, resp.QuickReplyLimit)
	}
}

func TestScenarioHandler_Get(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		method        string
		expectedCode  int
		expectedID    scenario.ID
		expectedKnown bool
		expectedTitle string
	}{
		{
			name:          "known scenario",
			path:          "/v1/scenarios/CHAT_REBATE",
			method:        http.MethodGet,
			expectedCode:  http.StatusOK,
			expectedID:    scenario.ChatRebate,
			expectedKnown: true,
			expectedTitle: scenario.Get(scenario.ChatRebate).Title,
		},
		{
			name:          "lower case with dashes",
			path:          "/v1/scenarios/chat-crypto",
			method:        http.MethodGet,
			expectedCode:  http.StatusOK,
			expectedID:    scenario.ChatCrypto,
			expectedKnown: true,
			expectedTitle: scenario.Get(scenario.ChatCrypto).Title,
		},
		{
			name:          "unknown gets placeholder",
			path:          "/v1/scenarios/LOTTERY",
			method:        http.MethodGet,
			expectedCode:  http.StatusOK,
			expectedID:    "LOTTERY",
			expectedKnown: false,
			expectedTitle: scenario.Placeholder.Title,
		},
		{
			name:         "nested path",
			path:         "/v1/scenarios/CHAT_REBATE/extra",
			method:       http.MethodGet,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "wrong method",
			path:         "/v1/scenarios/CHAT_REBATE",
			method:       http.MethodDelete,
			expectedCode: http.StatusMethodNotAllowed,
		},
	}

	handler := NewScenarioHandler(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			if rr.Code != tt.expectedCode {
				t.Fatalf("Expected status %d, got %d", tt.expectedCode, rr.Code)
			}
			if tt.expectedCode != http.StatusOK {
				return
			}

			var resp ScenarioResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.ID != tt.expectedID {
				t.Errorf("Expected id %q, got %q", tt.expectedID, resp.ID)
			}
			if resp.Known != tt.expectedKnown {
				t.Errorf("Expected known=%v, got %v", tt.expectedKnown, resp.Known)
			}
			if resp.Title != tt.expectedTitle {
				t.Errorf("Expected title %q, got %q", tt.expectedTitle, resp.Title)
			}
		})
	}
}
