package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrouter/api"
	"github.com/hupe1980/agentrouter/config"
	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/internal/app"
	"github.com/hupe1980/agentrouter/internal/metrics"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/model"
	"github.com/hupe1980/agentrouter/router"
	"github.com/hupe1980/agentrouter/tool"
)

const localYAML = `
session:
  backend: memory
models:
  default:
    provider: openai
    model: gpt-4o-mini
agents:
  - name: TriageAgent
    instruction: Handle customer requests.
    model: default
    entry: true
  - name: OrderStatusAgent
    model: default
    capabilities: [check_order_status]
handoffs:
  - source: TriageAgent
    target: OrderStatusAgent
    description: Transfer to this agent if the customer asks about the status of an order
`

func run(t *testing.T, env map[string]string, stdin string, args ...string) (string, error) {
	t.Helper()

	st := &state{lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	cmd := newRootCmd(st)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "agentrouter dev"), out)
}

func TestAgents_Default(t *testing.T) {
	out, err := run(t, map[string]string{
		"AGENTROUTER_REMOTE_ENDPOINT": "https://example.services.ai.azure.com/api/projects/support",
		"AGENTROUTER_REMOTE_AGENT_ID": "asst_research",
	}, "", "agents")
	require.NoError(t, err)

	assert.Contains(t, out, "ResearchAgent")
	assert.Contains(t, out, "remote=asst_research")
	assert.Contains(t, out, "process_refund")
	assert.Contains(t, out, config.HotelsHandoff)
}

func TestAgents_InvalidConfig(t *testing.T) {
	_, err := run(t, nil, "", "agents")

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "remote.endpoint")
}

func TestAgents_File(t *testing.T) {
	out, err := run(t, nil, "", "--config", writeConfig(t, localYAML), "agents")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[1], "TriageAgent")
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "check_order_status")
}

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["question"] == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "Try the Plaza."})
	}))
	t.Cleanup(srv.Close)

	out, err := run(t, nil, "", "ask", "--url", srv.URL, "--field", "question", "Hotels", "in", "New", "York?")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"Try the Plaza."}`, out)
	assert.Contains(t, out, "    \"answer\"", "indented output")

	out, err = run(t, nil, "", "ask", "--url", srv.URL, "Hotels?")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","status_code":400,"message":"question is required\n"}`, out)

	out, err = run(t, nil, "", "ask", "--url", "http://127.0.0.1:1/chat", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "error"`)
}

type scriptedRouter struct {
	calls []string
	errAt int
}

func (r *scriptedRouter) Route(_ context.Context, task, sessionID string) (*router.Result, error) {
	r.calls = append(r.calls, sessionID+"|"+task)
	if len(r.calls) == r.errAt {
		return nil, &core.BackendError{Agent: "ResearchAgent", Status: 503, Message: "run failed"}
	}
	if sessionID == "" {
		sessionID = "thread_1"
	}

	res := &router.Result{Reply: "Reply to: " + task, SessionID: sessionID}
	res.Turn.Responder = "TriageAgent"
	if strings.Contains(task, "hotel") {
		res.Turn.Handoffs = []core.DelegationEdge{{Source: "TriageAgent", Target: "ResearchAgent"}}
		res.Turn.Interim = []string{"Let me ask our research team."}
		res.Turn.Responder = "ResearchAgent"
	}
	return res, nil
}

func TestRunConsole(t *testing.T) {
	r := &scriptedRouter{errAt: 3}
	var out bytes.Buffer

	err := runConsole(context.Background(), r, strings.NewReader("Any hotel in Istanbul?\n\nWhere is order 42?\nexit\nnever sent\n"), &out, DefaultOpeningTask, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"|A customer is on the line.",
		"thread_1|Any hotel in Istanbul?",
		"thread_1|Where is order 42?",
	}, r.calls)

	want := "TriageAgent\t: Reply to: A customer is on the line.\n" +
		"User\t\t: TriageAgent\t: Let me ask our research team.\n" +
		"ResearchAgent\t: Reply to: Any hotel in Istanbul?\n" +
		"User\t\t: User\t\t: error\t: backend error [ResearchAgent] (status 503): run failed\n" +
		"User\t\t: "
	assert.Equal(t, want, out.String())
}

func TestRunConsole_EOF(t *testing.T) {
	r := &scriptedRouter{}
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), r, strings.NewReader(""), &out, "hello", "thread_9"))
	assert.Equal(t, []string{"thread_9|hello"}, r.calls)
	assert.True(t, strings.HasSuffix(out.String(), "User\t\t: \n"))
}

func TestHandoff_RemoteServer(t *testing.T) {
	srv := httptest.NewServer(api.NewHandler(&scriptedRouter{}))
	t.Cleanup(srv.Close)

	out, err := run(t, nil, "Find a hotel\nexit\n", "handoff", "--url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Agent\t: Reply to: A customer is on the line.\n")
	assert.Contains(t, out, "Agent\t: Reply to: Find a hotel\n")
}

func TestHandoff_Local(t *testing.T) {
	out, err := run(t, map[string]string{"OPENAI_API_KEY": "sk-test"}, "",
		"--config", writeConfig(t, strings.Replace(localYAML, "model: default\n    entry: true", "model: missing\n    entry: true", 1)),
		"handoff")

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr, out)
	assert.Contains(t, err.Error(), "missing")
}

func TestAPIHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, config.Parse([]byte(localYAML), cfg))
	cfg.Server.RateLimit.RPS = 100

	triage := model.NewMockModel("triage", "mock").Enqueue(
		model.CallResponse("", core.FunctionCall{Name: tool.TransferToolName, Arguments: `{"agent_name":"OrderStatusAgent"}`}),
		model.CallResponse("", core.FunctionCall{Name: "check_order_status", Arguments: `{"order_id":"42"}`}),
		model.TextResponse("Order 42 is shipped and will arrive in 2-3 days."),
	)

	collector := metrics.NewCollector("clitest", nil)
	a, err := app.New(context.Background(), cfg, func(o *app.Options) {
		o.Models = map[string]model.Model{"default": triage}
		o.Collector = collector
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := newAPIHandler(ctx, cfg, a, collector, logging.NoOpLogger{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"Where is order 42?"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(cfg.Server.SessionHeader))
	assert.NotEmpty(t, rec.Header().Get(api.RequestIDHeader))
	assert.JSONEq(t, `{"response":"Order 42 is shipped and will arrive in 2-3 days."}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `clitest_handoffs_total{source="TriageAgent",target="OrderStatusAgent"} 1`)
	assert.Contains(t, rec.Body.String(), `clitest_http_requests_total{method="POST",path="/chat",status="200"} 1`)
}

func TestServe_StartFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, config.Parse([]byte(localYAML), cfg))
	cfg.Server.Addr = "256.0.0.1:bad"
	cfg.Server.MetricsAddr = ""

	err := serve(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
