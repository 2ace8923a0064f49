package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrouter/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final output of a generation call.
type Response struct {
	ID           string       `json:"id"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "azure", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by completion services.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by MockModel when its script is exhausted and no
// fallback is configured.
var ErrNoResponse = errors.New("mock model: no scripted response left")

// MockModel is a lightweight in-memory Model useful for tests & demos. It
// replays scripted responses in order, then falls back to canned answers keyed
// by the last user text, then to an echo.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	script    []Response
	errs      []error
	responses map[string]string
	requests  []Request
	noEcho    bool
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted responses replayed before any canned answer.
func (m *MockModel) Enqueue(responses ...Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.script = append(m.script, r)
		m.errs = append(m.errs, nil)
	}
	return m
}

// EnqueueError scripts a failing call.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, Response{})
	m.errs = append(m.errs, err)
	return m
}

// DisableEcho makes an exhausted script fail with ErrNoResponse.
func (m *MockModel) DisableEcho() *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noEcho = true
	return m
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		resp, err := m.script[0], m.errs[0]
		m.script, m.errs = m.script[1:], m.errs[1:]
		if err != nil {
			return nil, err
		}
		if resp.ID == "" {
			resp.ID = uuid.NewString()
		}
		if resp.Content.Role == "" {
			resp.Content.Role = core.RoleAssistant
		}
		return &resp, nil
	}

	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("no contents provided")
	}

	inputText := req.Contents[len(req.Contents)-1].Text()

	full, ok := m.responses[inputText]
	if !ok {
		if m.noEcho {
			return nil, ErrNoResponse
		}
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}

	return &Response{
		ID:           uuid.NewString(),
		Content:      core.NewTextContent(core.RoleAssistant, full),
		FinishReason: "stop",
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// TextResponse is a scripted final answer.
func TextResponse(text string) Response {
	return Response{Content: core.NewTextContent(core.RoleAssistant, text), FinishReason: "stop"}
}

// CallResponse is a scripted response requesting function calls. Missing call
// IDs are filled in.
func CallResponse(text string, calls ...core.FunctionCall) Response {
	parts := make([]core.Part, 0, len(calls)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()[:8]
		}
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	return Response{Content: core.Content{Role: core.RoleAssistant, Parts: parts}, FinishReason: "tool_calls"}
}
