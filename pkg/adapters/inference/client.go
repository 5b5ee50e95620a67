package inference

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

	"github.com/aretw0/triage/pkg/domain"
)

// Default endpoint paths, relative to the base URL.
const (
	PathStructured = "/predict/structured"
	PathText       = "/predict/text"
	PathGenerate   = "/generate"
)

// Client talks to a model server over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	header  http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBearerToken authenticates every request.
func WithBearerToken(token string) Option {
	return func(cl *Client) {
		if token != "" {
			cl.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		header:  http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends in as JSON and decodes the response into out.
// Transport failures and 5xx/429 responses wrap domain.ErrTransient.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, errors.Join(domain.ErrTransient, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, errors.Join(domain.ErrTransient, err))
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("POST %s: %w: status %d: %s", path, domain.ErrTransient, resp.StatusCode, msg)
		}
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
