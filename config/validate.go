package config

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrouter/core"
)

// Validate reports every structural problem as one *core.ConfigurationError.
// Capability names are checked when the deployment is assembled.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		addf("server.addr is required")
	}
	if strings.TrimSpace(c.Server.SessionHeader) == "" {
		addf("server.session_header is required")
	}
	if c.Server.RateLimit.RPS < 0 {
		addf("server.rate_limit.rps must not be negative")
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst < 1 {
		addf("server.rate_limit.burst must be at least 1")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		addf("telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		addf("telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if c.Router.MaxHops < 0 {
		addf("router.max_hops must not be negative, got %d", c.Router.MaxHops)
	}
	if c.Completion.MaxModelCalls < 0 || c.Completion.MaxHistoryMessages < 0 || c.Completion.MaxParallelTools < 0 {
		addf("completion limits must not be negative")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			addf("session.redis.addr is required for the redis backend")
		}
	case BackendSQLite:
		if c.Session.SQLite.Path == "" {
			addf("session.sqlite.path is required for the sqlite backend")
		}
	case BackendRemote:
		if c.Remote.Endpoint == "" {
			addf("remote.endpoint is required for the remote session backend")
		}
	default:
		addf("session.backend %q is not one of memory, redis, sqlite, remote", c.Session.Backend)
	}

	for name, m := range c.Models {
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic:
		case ProviderAzure:
			if m.BaseURL == "" || m.APIVersion == "" {
				addf("model %q: azure deployments need base_url and api_version", name)
			}
		default:
			addf("model %q: provider %q is not one of openai, azure, anthropic", name, m.Provider)
		}
		if m.Model == "" {
			addf("model %q: model is required", name)
		}
	}

	c.validateAgents(addf)

	if len(problems) == 0 {
		return nil
	}
	return core.NewConfigurationError("config", "%s", strings.Join(problems, "; "))
}

func (c *Config) validateAgents(addf func(format string, args ...any)) {
	if len(c.Agents) == 0 {
		addf("at least one agent is required")
		return
	}

	names := make(map[string]bool, len(c.Agents))
	var entries []string
	for i, a := range c.Agents {
		switch {
		case a.Name == "":
			addf("agents[%d]: name is required", i)
			continue
		case names[a.Name]:
			addf("agent %q is declared twice", a.Name)
		}
		names[a.Name] = true

		if a.Entry {
			entries = append(entries, a.Name)
		}

		if a.Remote {
			if a.Model != "" || len(a.Capabilities) > 0 {
				addf("agent %q: remote agents take neither model nor capabilities", a.Name)
			}
			if c.RemoteAgentID(a) == "" {
				addf("agent %q: remote_agent_id or remote.agent_id is required", a.Name)
			}
			if c.Remote.Endpoint == "" {
				addf("agent %q: remote.endpoint is required for remote agents", a.Name)
			}
			if c.Session.Backend != BackendRemote {
				addf("agent %q: remote agents need session.backend %q", a.Name, BackendRemote)
			}
			continue
		}

		if a.Model == "" {
			addf("agent %q: model is required", a.Name)
		} else if _, ok := c.Models[a.Model]; !ok {
			addf("agent %q: unknown model %q", a.Name, a.Model)
		}
	}

	if len(entries) > 1 {
		addf("agents %s are all marked as entry", strings.Join(entries, ", "))
	}
	if e := c.Router.EntryAgent; e != "" {
		if !names[e] {
			addf("router.entry_agent %q is not a declared agent", e)
		}
		if len(entries) == 1 && entries[0] != e {
			addf("router.entry_agent %q conflicts with entry agent %q", e, entries[0])
		}
	}

	for i, h := range c.Handoffs {
		if !names[h.Source] {
			addf("handoffs[%d]: unknown source agent %q", i, h.Source)
		}
		if !names[h.Target] {
			addf("handoffs[%d]: unknown target agent %q", i, h.Target)
		}
	}
}
