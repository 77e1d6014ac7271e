// Package delivery posts finished analysis outcomes back to the main service.
// Delivery is fire-and-forget: one attempt per job, failures are reported to
// the caller for logging and never retried.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/critique/internal/model"
)

// resultPath is the main service's result-ingestion endpoint.
const resultPath = "/api/internal/analysis-result"

// defaultTimeout bounds one callback attempt end to end.
const defaultTimeout = 30 * time.Second

// resultPayload is the JSON body POSTed to the main service. The snake_case
// field names are the wire contract shared with that service; analysis_result
// and confidence_score are explicit nulls on failure, not omitted.
type resultPayload struct {
	RequestID       int64    `json:"request_id"`
	Success         bool     `json:"success"`
	AnalysisResult  *string  `json:"analysis_result"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ProcessingTime  float64  `json:"processing_time"`
	Message         string   `json:"message"`
	ServiceKey      string   `json:"service_key"`
}

// Config captures what the client needs to reach the main service.
type Config struct {
	// MainServiceURL is the base URL of the main service, e.g.
	// "http://localhost:8080".
	MainServiceURL string

	// ServiceKey is the pre-shared credential the main service checks before
	// trusting a callback. It travels as a payload field, not a signature.
	ServiceKey string

	Timeout time.Duration

	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

// Client delivers analysis outcomes to the main service.
type Client struct {
	endpoint   string
	serviceKey string
	client     *http.Client
}

// NewClient builds a delivery client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.MainServiceURL)
	if base == "" {
		return nil, errors.New("main service url is required")
	}
	endpoint, err := url.JoinPath(base, resultPath)
	if err != nil {
		return nil, fmt.Errorf("build result endpoint: %w", err)
	}

	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.New("service key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:   endpoint,
		serviceKey: cfg.ServiceKey,
		client:     hc,
	}, nil
}

// Deliver posts the outcome to the main service exactly once. The returned
// delivery id identifies this attempt in logs and the journal regardless of
// how the attempt ends. A transport failure or non-2xx response comes back as
// an error; the caller logs it and moves on.
func (c *Client) Deliver(ctx context.Context, out model.Outcome) (string, error) {
	deliveryID := uuid.NewString()

	body, err := json.Marshal(c.buildPayload(out))
	if err != nil {
		return deliveryID, fmt.Errorf("encode result payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return deliveryID, fmt.Errorf("create result request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)

	resp, err := c.client.Do(req)
	if err != nil {
		return deliveryID, fmt.Errorf("post result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return deliveryID, fmt.Errorf("main service %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	// Drain so the connection can be reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return deliveryID, fmt.Errorf("drain result response: %w", err)
	}

	return deliveryID, nil
}

func (c *Client) buildPayload(out model.Outcome) resultPayload {
	p := resultPayload{
		RequestID:      out.RequestID,
		Success:        out.Success,
		ProcessingTime: out.ProcessingSeconds,
		Message:        out.Message(),
		ServiceKey:     c.serviceKey,
	}
	if out.Success {
		p.AnalysisResult = &out.Verdict
		p.ConfidenceScore = &out.Score
	}
	return p
}
