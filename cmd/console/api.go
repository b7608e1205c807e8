package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/scam-sim/internal/handlers"
	"github.com/jwebster45206/scam-sim/pkg/chat"
	"github.com/jwebster45206/scam-sim/pkg/market"
)

// apiClient talks to the sessions API.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) listScenarios() (*handlers.ScenarioListResponse, error) {
	var out handlers.ScenarioListResponse
	if err := c.do(http.MethodGet, "/v1/scenarios", nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return &out, nil
}

func (c *apiClient) createSession() (*handlers.SessionResponse, error) {
	var out handlers.SessionResponse
	if err := c.do(http.MethodPost, "/v1/sessions", nil, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &out, nil
}

func (c *apiClient) getSession(id string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodGet, id, "", nil)
}

func (c *apiClient) start(id, scenarioID string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/start", chat.StartRequest{Scenario: scenarioID})
}

func (c *apiClient) send(id, message string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/messages", chat.ChatRequest{Message: message})
}

func (c *apiClient) act(id, action string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/actions", chat.ActionRequest{Action: action})
}

func (c *apiClient) market(id string, action market.Action) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/market/"+strings.ReplaceAll(string(action), "_", "-"), nil)
}

func (c *apiClient) retry(id string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/retry", nil)
}

func (c *apiClient) reset(id string) (*handlers.SessionResponse, error) {
	return c.sessionOp(http.MethodPost, id, "/reset", nil)
}

func (c *apiClient) sessionOp(method, id, suffix string, body any) (*handlers.SessionResponse, error) {
	var out handlers.SessionResponse
	if err := c.do(method, "/v1/sessions/"+id+suffix, body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// listenToSSE connects to the SSE endpoint and streams events to a channel
// until ctx is cancelled or the stream ends.
func (c *apiClient) listenToSSE(ctx context.Context, sessionID string, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/sessions/%s", c.baseURL, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream outlives the request timeout of the shared client.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				currentEvent.Data = data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
