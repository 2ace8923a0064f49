// Package remote talks to a hosted agent backend that owns conversation
// threads. It exposes the backend three ways:
//
//   - Client: thin REST client for threads, messages and runs
//   - ThreadStore: core.ConversationStore and core.HistoryStore over threads
//   - AgentService: core.CompletionService that runs a hosted agent on a thread
//
// The backend follows the assistants-style protocol: a run is created for an
// agent on a thread and polled until it reaches a terminal status.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hupe1980/agentrouter/logging"
)

// DefaultAPIVersion is sent as api-version query parameter when none is set.
const DefaultAPIVersion = "2025-05-01"

// OAuthConfig enables the OAuth2 client credentials flow.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	APIVersion string
	APIKey     string       // sent as api-key header
	OAuth      *OAuthConfig // bearer tokens via client credentials
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     logging.Logger
}

// Client is a REST client for the hosted agent backend.
type Client struct {
	endpoint string
	http     *http.Client
	opts     ClientOptions
}

// NewClient creates a client for the project endpoint.
func NewClient(endpoint string, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{
		APIVersion: DefaultAPIVersion,
		Timeout:    30 * time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid endpoint %q", endpoint)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	if opts.OAuth != nil {
		cc := &clientcredentials.Config{
			ClientID:     opts.OAuth.ClientID,
			ClientSecret: opts.OAuth.ClientSecret,
			TokenURL:     opts.OAuth.TokenURL,
			Scopes:       opts.OAuth.Scopes,
		}
		// Token requests reuse the configured base client.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := cc.Client(ctx)
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
		opts:     opts,
	}, nil
}

// APIError is a non-2xx answer of the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote api error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Thread is a conversation owned by the backend.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// MessageText is the text payload of a message content block.
type MessageText struct {
	Value string `json:"value"`
}

// MessageContent is one content block of a thread message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// ThreadMessage is a message stored on a thread.
type ThreadMessage struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	Content   []MessageContent `json:"content"`
	AgentID   string           `json:"assistant_id,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	CreatedAt int64            `json:"created_at"`
}

// Text concatenates the text blocks of the message.
func (m ThreadMessage) Text() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// IsTerminal reports whether the run will not change anymore.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// RunError describes why a run failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run executes an agent on a thread.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AgentID   string    `json:"assistant_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

// ListOptions filters ListMessages.
type ListOptions struct {
	Order string // "asc" or "desc"
	Limit int
	RunID string
	After string // cursor: list messages after this message id
}

// MessagePage is one page of a thread listing.
type MessagePage struct {
	Data    []ThreadMessage `json:"data"`
	LastID  string          `json:"last_id"`
	HasMore bool            `json:"has_more"`
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThread fetches a thread. A missing thread yields an APIError with status 404.
func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*ThreadMessage, error) {
	body := map[string]string{"role": role, "content": content}

	var m ThreadMessage
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", nil, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a single page of messages of a thread.
func (c *Client) ListMessages(ctx context.Context, threadID string, opts ListOptions) ([]ThreadMessage, error) {
	page, err := c.ListMessagePage(ctx, threadID, opts)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// ListMessagePage returns a page of messages together with its cursor.
func (c *Client) ListMessagePage(ctx context.Context, threadID string, opts ListOptions) (*MessagePage, error) {
	q := url.Values{}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.RunID != "" {
		q.Set("run_id", opts.RunID)
	}
	if opts.After != "" {
		q.Set("after", opts.After)
	}

	var page MessagePage
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID)+"/messages", q, nil, &page); err != nil {
		return nil, err
	}
	if page.LastID == "" && len(page.Data) > 0 {
		page.LastID = page.Data[len(page.Data)-1].ID
	}
	return &page, nil
}

// CreateRun starts agentID on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*Run, error) {
	body := map[string]string{"assistant_id": agentID}

	var r Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var r Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.opts.APIVersion)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path+"?"+query.Encode(), body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("api-key", c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.opts.Logger.Debug("remote.http.request",
		"http.method", method,
		"http.path", path,
		"http.status", resp.StatusCode,
		"duration.ms", time.Since(start).Milliseconds(),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
