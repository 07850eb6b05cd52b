package casedeskctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to a running casedesk-api.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// APIError is a non-2xx answer. Code and TraceID come from the JSON error
// envelope when the body carries one.
type APIError struct {
	Status  int
	Code    string
	Message string
	TraceID string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Body)
	}
	msg := fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
	if e.TraceID != "" {
		msg += " (trace " + e.TraceID + ")"
	}
	return msg
}

// Ask posts one question to /chat and returns the answer text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	body, err := c.Do(ctx, http.MethodPost, "/chat", map[string]string{"user_input": question})
	if err != nil {
		return "", err
	}
	var answer struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &answer); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	return answer.Response, nil
}

// Do sends payload as JSON (when non-nil) and returns the raw response body.
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.APIKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: strings.TrimSpace(string(body))}
	var envelope struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		TraceID   string `json:"trace_id"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.ErrorCode
		apiErr.Message = envelope.Message
		apiErr.TraceID = envelope.TraceID
	}
	return apiErr
}
