// Package provider is the HTTP client for the upstream chat-completion
// API. It issues exactly one outbound call per operation — there is no
// retry policy anywhere, because retrying a credential-bearing call
// against a possibly revoked or throttled key amplifies provider-side
// rate limiting.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the upstream API root used when none is configured.
const DefaultBaseURL = "https://api.openai.com"

const (
	livenessTimeout   = 10 * time.Second
	completionTimeout = 30 * time.Second
)

// Client calls the upstream provider with a caller-supplied credential.
// It holds no credential state itself.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client for the given base URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one upstream chat call.
type CompletionRequest struct {
	Model    string
	Messages []Message
}

type wireCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// CheckKey probes the models listing endpoint with the credential as a
// bearer token to confirm the key is currently accepted. One call,
// 10-second deadline, no retries.
func (c *Client) CheckKey(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("creating liveness request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("liveness request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return statusToError(resp.StatusCode)
}

// StreamCompletion posts one chat completion with streaming enabled and
// returns the live response body for relaying. The 30-second deadline
// bounds the whole call including the stream; closing the returned body
// cancels the outbound request.
func (c *Client) StreamCompletion(ctx context.Context, key string, compReq CompletionRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(wireCompletionRequest{
		Model:    compReq.Model,
		Messages: compReq.Messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("completion request: %w", err)
	}

	if err := statusToError(resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, err
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// statusToError maps an upstream HTTP status to the typed error set.
func statusToError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrKeyUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusForbidden:
		return ErrQuotaExceeded
	default:
		return &StatusError{Code: code}
	}
}

// cancelReadCloser releases the request context when the stream is
// closed so the outbound connection is freed promptly.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
