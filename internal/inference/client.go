// Package inference is the HTTP client for the remote vision-language
// inference backend. It owns retry, backoff, and timeout policy and
// classifies every failure as either transient (retryable) or permanent.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/el-gladiador/medflow-backend/internal/config"
	"github.com/el-gladiador/medflow-backend/internal/port"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 120 * time.Second

// Client talks to the inference backend over a shared connection pool.
// It is safe for concurrent use by multiple simultaneous requests.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
	retryBackoff  float64
	log           zerolog.Logger
}

// NewClient creates a client from config. The connect timeout applies to
// dialing only; the overall request timeout is the read timeout, sized to
// tolerate a cold model load.
func NewClient(cfg *config.InferenceConfig, log zerolog.Logger) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout()}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout(),
		},
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay(),
		retryBackoff:  cfg.RetryBackoff,
		log:           log.With().Str("component", "inference").Logger(),
	}
}

type inferRequest struct {
	ImageB64 string `json:"image_b64"`
	Prompt   string `json:"prompt"`
}

type inferResponse struct {
	Text            string `json:"text"`
	InferenceTimeMs int64  `json:"inference_time_ms"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Infer sends the image and prompt to the backend, retrying transient
// failures with exponential backoff. Only UnavailableError triggers a
// retry; a BackendError propagates on first occurrence. The error of the
// final exhausted attempt is the one returned.
func (c *Client) Infer(ctx context.Context, image []byte, prompt string) (port.InferResult, error) {
	payload, err := json.Marshal(inferRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
		Prompt:   prompt,
	})
	if err != nil {
		return port.InferResult{}, fmt.Errorf("marshaling inference request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		result, err := c.send(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsUnavailable(err) || attempt == c.retryAttempts {
			break
		}

		delay := c.backoffDelay(attempt)
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.retryAttempts).
			Dur("backoff", delay).
			Msg("inference backend unavailable, retrying")

		select {
		case <-ctx.Done():
			// A cancelled request abandons the retry sequence; nothing
			// is retained.
			return port.InferResult{}, &UnavailableError{
				Detail: fmt.Sprintf("request cancelled during retry: %v", ctx.Err()),
			}
		case <-time.After(delay):
		}
	}

	return port.InferResult{}, lastErr
}

// backoffDelay computes the pause after the given attempt number:
// delay * backoff^(attempt-1), capped at maxBackoff.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.retryBackoff)
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// send performs a single inference call and classifies the outcome.
func (c *Client) send(ctx context.Context, payload []byte) (port.InferResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(payload))
	if err != nil {
		return port.InferResult{}, fmt.Errorf("creating inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (connection refused, connect/read
		// timeout) are all transient from the caller's perspective.
		return port.InferResult{}, &UnavailableError{Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return port.InferResult{}, &UnavailableError{Detail: fmt.Sprintf("reading response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return port.InferResult{}, &UnavailableError{Detail: errorDetail(body, "service unavailable")}
	case resp.StatusCode != http.StatusOK:
		return port.InferResult{}, &BackendError{Detail: errorDetail(body, fmt.Sprintf("HTTP %d", resp.StatusCode))}
	}

	var out inferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return port.InferResult{}, &BackendError{Detail: fmt.Sprintf("malformed response: %v", err)}
	}

	return port.InferResult{Text: out.Text, InferenceTimeMs: out.InferenceTimeMs}, nil
}

// errorDetail pulls the backend's detail string out of an error body,
// falling back to the given default.
func errorDetail(body []byte, fallback string) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Detail != "" {
		return er.Detail
	}
	return fallback
}

// Health probes the backend's /health endpoint. Network failure is
// converted into a status map rather than an error: health checks must
// never crash the caller.
func (c *Client) Health(ctx context.Context) map[string]interface{} {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return map[string]interface{}{"status": "unreachable", "error": err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("backend health check failed")
		return map[string]interface{}{"status": "unreachable", "error": err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return map[string]interface{}{"status": "unreachable", "error": err.Error()}
	}
	return health
}
