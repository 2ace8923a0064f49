package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrouter/core"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validDefault() *Config {
	cfg := DefaultConfig()
	cfg.Remote.Endpoint = "https://example.services.ai.azure.com/api/projects/support"
	cfg.Remote.AgentID = "asst_research"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "X-Session-ID", cfg.Server.SessionHeader)
	assert.Equal(t, 1, cfg.Router.MaxHops)
	assert.Equal(t, BackendRemote, cfg.Session.Backend)
	assert.Equal(t, []string{Disclaimer}, cfg.Remote.TrimSuffixes)

	require.Len(t, cfg.Agents, 5)
	assert.True(t, cfg.Agents[0].Entry)
	assert.True(t, cfg.HasRemoteAgents())

	research, ok := cfg.Agent("ResearchAgent")
	require.True(t, ok)
	assert.True(t, research.Remote)

	assert.Equal(t, HandoffConfig{Source: "TriageAgent", Target: "ResearchAgent", Description: HotelsHandoff}, cfg.Handoffs[0])
}

func TestDefaultConfig_NeedsRemoteEndpoint(t *testing.T) {
	err := DefaultConfig().Validate()

	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "remote.endpoint is required")

	assert.NoError(t, validDefault().Validate())
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  write_timeout: 45s
router:
  max_hops: 2
session:
  backend: sqlite
  sqlite:
    path: /tmp/sessions.db
models:
  azure:
    provider: azure
    model: gpt-4o
    base_url: https://support.openai.azure.com/openai/deployments/gpt-4o
    api_version: "2024-10-21"
agents:
  - name: TriageAgent
    instruction: Handle customer requests.
    model: azure
  - name: RefundAgent
    model: azure
    capabilities: [process_refund]
handoffs:
  - source: TriageAgent
    target: RefundAgent
`), 0o600))

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithLookupEnv(envMap(nil)).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "X-Session-ID", cfg.Server.SessionHeader, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Router.MaxHops)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, []string{"process_refund"}, cfg.Agents[1].Capabilities)
	require.Len(t, cfg.Handoffs, 1)
	assert.Contains(t, cfg.Models, "azure")
}

func TestLoader_Env(t *testing.T) {
	cfg, err := NewLoader().WithLookupEnv(envMap(map[string]string{
		"AGENTROUTER_SERVER_ADDR":                ":7000",
		"AGENTROUTER_SERVER_RATE_LIMIT_RPS":      "2.5",
		"AGENTROUTER_ROUTER_VERIFY_SESSIONS":     "true",
		"AGENTROUTER_REMOTE_ENDPOINT":            "https://example.test/api",
		"AGENTROUTER_REMOTE_POLL_INTERVAL":       "250ms",
		"AGENTROUTER_REMOTE_OAUTH_SCOPES":        "a, b",
		"AGENTROUTER_SESSION_REDIS_DB":           "3",
		"AGENTROUTER_LOG_LEVEL":                  "debug",
		"AGENTROUTER_TELEMETRY_SERVICE_NAME":     "router-test",
		"AGENTROUTER_COMPLETION_MAX_MODEL_CALLS": "4",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit.RPS, 0.001)
	assert.True(t, cfg.Router.VerifySessions)
	assert.Equal(t, "https://example.test/api", cfg.Remote.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.PollInterval)
	assert.Equal(t, []string{"a", "b"}, cfg.Remote.OAuth.Scopes)
	assert.Equal(t, 3, cfg.Session.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "router-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, 4, cfg.Completion.MaxModelCalls)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("bad env value", func(t *testing.T) {
		_, err := NewLoader().WithLookupEnv(envMap(map[string]string{
			"AGENTROUTER_ROUTER_MAX_HOPS": "many",
		})).Load()
		assert.ErrorContains(t, err, "AGENTROUTER_ROUTER_MAX_HOPS")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  adress: \":1\"\n"), 0o600))

		_, err := NewLoader().WithConfigPath(path).WithLookupEnv(envMap(nil)).Load()
		assert.ErrorContains(t, err, "adress")
	})

	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "none.yaml")).WithLookupEnv(envMap(nil)).Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("empty document", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, Parse(nil, cfg))
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"negative hops", func(c *Config) { c.Router.MaxHops = -1 }, "router.max_hops"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }, "session.backend"},
		{"redis without addr", func(c *Config) {
			c.Session.Backend = BackendRedis
			c.Session.Redis.Addr = ""
		}, "session.redis.addr"},
		{"remote agent without remote sessions", func(c *Config) { c.Session.Backend = BackendMemory }, "remote agents need session.backend"},
		{"remote agent without id", func(c *Config) { c.Remote.AgentID = "" }, "remote_agent_id"},
		{"duplicate agent", func(c *Config) { c.Agents = append(c.Agents, c.Agents[1]) }, "declared twice"},
		{"unknown model", func(c *Config) { c.Agents[1].Model = "gpt-5" }, "unknown model"},
		{"two entries", func(c *Config) { c.Agents[1].Entry = true }, "marked as entry"},
		{"entry conflict", func(c *Config) { c.Router.EntryAgent = "RefundAgent" }, "conflicts"},
		{"unknown handoff target", func(c *Config) {
			c.Handoffs = append(c.Handoffs, HandoffConfig{Source: "TriageAgent", Target: "HotelAgent"})
		}, "unknown target agent"},
		{"azure without version", func(c *Config) {
			c.Models["azure"] = ModelConfig{Provider: ProviderAzure, Model: "gpt-4o"}
		}, "base_url and api_version"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
		{"no agents", func(c *Config) { c.Agents = nil }, "at least one agent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefault()
			tt.mutate(cfg)

			err := cfg.Validate()

			var cfgErr *core.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "config", cfgErr.Component)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefault()
	cfg.Router.MaxHops = -1
	cfg.Server.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "router.max_hops")
}
