package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider - name recorded on every moderation result row
const Provider = "external"

// Result - the decoded provider response. Raw keeps the undecoded payload for
// the audit trail.
type Result struct {
	Verdict string   `json:"verdict"`
	Score   *float64 `json:"score,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Raw     []byte   `json:"-"`
}

// StatusError - the endpoint answered with a non-2xx status; distinct from
// transport failures so the caller can record "http-<status>" as the reason
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("moderation endpoint returned %s", e.Reason())
}

func (e *StatusError) Reason() string {
	return fmt.Sprintf("http-%d", e.Code)
}

type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewClient - timeout bounds a hung provider call; the caller treats it as a
// network error
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Check submits the raw image bytes to the provider. Transport failures come
// back as plain errors, non-2xx statuses as *StatusError.
func (c *Client) Check(ctx context.Context, data []byte, contentType, sourceKey string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build moderation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Source-Key", sourceKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read moderation response: %w", err)
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode moderation response: %w", err)
	}
	res.Raw = raw

	return &res, nil
}
