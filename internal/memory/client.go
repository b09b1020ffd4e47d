package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/locomo-ingest/internal/locomo"
)

// DefaultTimeout bounds a single ingest call. The memory server extracts facts synchronously
// for large sessions, so this is generous.
const DefaultTimeout = 60 * time.Second

const ingestPath = "/memory/ingest"

// IngestRequest is the body of POST /memory/ingest.
type IngestRequest struct {
	AgentID        string            `json:"agent_id"`
	ConversationID string            `json:"conversation_id"`
	Turns          []locomo.Exchange `json:"turns"`
	SessionDate    string            `json:"session_date,omitempty"`
}

// IngestResponse is the subset of the ingest reply the driver reads.
type IngestResponse struct {
	TurnsIngested int `json:"turns_ingested"`
}

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memory api error %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the normalized server URL the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ingest posts one session's exchanges. A missing turns_ingested field reads as zero.
func (c *Client) Ingest(ctx context.Context, in IngestRequest) (*IngestResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ingestPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out IngestResponse
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}
