package checkout

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrMalformedResponse is returned when a response body is not valid JSON.
	ErrMalformedResponse = errors.New("checkout: malformed JSON response")
	// ErrNotConfigured is returned when a required collaborator is missing.
	ErrNotConfigured = errors.New("checkout: bootstrap not configured")
	// ErrMissingRedirectResult is returned when the return page carries no redirectResult.
	ErrMissingRedirectResult = errors.New("checkout: redirect result missing")
)

// Client posts JSON to the backend. Status codes are not inspected: any response whose body
// parses as JSON is handed back to the caller.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// NewClient builds a Client whose requests are traced. A zero timeout waits indefinitely.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL: strings.TrimSpace(baseURL),
	}
}

// SendPostRequest posts data serialised as JSON, or an empty body when data is nil, and
// returns the parsed response body.
func (c *Client) SendPostRequest(ctx context.Context, target string, data any) (json.RawMessage, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	endpoint, err := c.resolve(target)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(data)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", target, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", target, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w from %s (status %d)", ErrMalformedResponse, target, resp.StatusCode)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) resolve(target string) (string, error) {
	if c.BaseURL == "" {
		return target, nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func encodeBody(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(data)
}
