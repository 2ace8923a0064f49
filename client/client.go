// Package client talks to a running agentrouter API and to ad-hoc JSON
// endpoints.
package client

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

	"github.com/hupe1980/agentrouter/api"
	"github.com/hupe1980/agentrouter/logging"
)

// Options configures a Client.
type Options struct {
	SessionHeader string
	HTTPClient    *http.Client
	Timeout       time.Duration
	Logger        logging.Logger
}

// Client calls the chat API.
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
}

// Reply is the answer to one chat turn.
type Reply struct {
	Response  string
	SessionID string
}

// StatusError is returned for non-2xx answers of the chat API.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agentrouter: status %d: %s", e.StatusCode, e.Detail)
}

// New creates a client for the API served at baseURL.
func New(baseURL string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		SessionHeader: api.DefaultSessionHeader,
		Timeout:       3 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		opts:    opts,
	}, nil
}

// Chat sends message within sessionID. An empty sessionID asks the server to
// start a new session; the returned Reply carries the identifier to reuse.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*Reply, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+api.ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(c.opts.SessionHeader, sessionID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: post %s: %w", api.ChatPath, err)
	}
	defer resp.Body.Close()

	c.opts.Logger.Debug("client.chat", "http.status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, decodeStatusError(resp)
	}

	var out api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}

	returned := resp.Header.Get(c.opts.SessionHeader)
	if returned == "" {
		returned = sessionID
	}

	return &Reply{Response: out.Response, SessionID: returned}, nil
}

// Status fetches GET /.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: get /: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeStatusError(resp)
	}

	var out api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("client: decode status: %w", err)
	}
	return &out, nil
}

func decodeStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return &StatusError{StatusCode: resp.StatusCode, Detail: body.Detail}
	}

	detail := strings.TrimSpace(string(data))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &StatusError{StatusCode: resp.StatusCode, Detail: detail}
}

// PostJSON posts payload to url and returns the decoded JSON object. A non-200
// answer is not an error: it is reported as
// {"status": "error", "status_code": <code>, "message": <body>}.
// Transport failures are returned as errors; ErrorResult renders them in the
// same shape.
func PostJSON(ctx context.Context, httpClient *http.Client, url string, payload any) (map[string]any, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return map[string]any{
			"status":      "error",
			"status_code": resp.StatusCode,
			"message":     string(data),
		}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		var other any
		if json.Unmarshal(data, &other) != nil {
			return nil, fmt.Errorf("client: decode response: %w", err)
		}
		// Non-object JSON documents are wrapped so callers always get a map.
		out = map[string]any{"data": other}
	}
	return out, nil
}

// ErrorResult renders a transport failure like the non-200 results of
// PostJSON.
func ErrorResult(err error) map[string]any {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg = urlErr.Err.Error()
	}
	return map[string]any{"status": "error", "message": msg}
}
