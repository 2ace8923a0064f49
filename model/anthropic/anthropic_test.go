package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/model"
)

const toolUseMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "toolu_1", "name": "check_order_status", "input": {"order_id": "42"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestModel_Generate(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolUseMessage)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "k"
		o.BaseURL = srv.URL
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "Handle order status requests.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "Where is order 42?")},
		Tools: []model.ToolDefinition{
			model.NewToolDefinition("check_order_status", "Check the status of an order", map[string]any{
				"type":       "object",
				"properties": map[string]any{"order_id": map[string]any{"type": "string"}},
				"required":   []string{"order_id"},
			}),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Let me check.", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"order_id":"42"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	system := captured["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "Handle order status requests.", system[0].(map[string]any)["text"])

	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "Check the status of an order", tools[0].(map[string]any)["description"])
}

func TestBuildMessages_ToolResultsAsUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleSystem, "ignored here"),
		core.NewTextContent(core.RoleUser, "Refund order 7"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "process_refund", Arguments: `{"order_id":"7"}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "process_refund", Response: "done"}},
		}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestModel_GenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "k"
		o.BaseURL = srv.URL
	})

	_, err := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
	assert.Equal(t, "anthropic", m.Info().Provider)
}
