// Package config loads the deployment description of an agentrouter process:
// server settings, session backend, models, agents and delegation edges.
//
// Values are resolved in three layers: DefaultConfig, then a YAML file, then
// environment variables named after the env struct tags
// (AGENTROUTER_SERVER_ADDR, AGENTROUTER_REMOTE_API_KEY, ...).
package config

import (
	"time"

	"github.com/hupe1980/agentrouter/logging"
)

// Config is the complete process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Log        logging.Config   `yaml:"log" env:"LOG"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" env:"TELEMETRY"`
	Router     RouterConfig     `yaml:"router" env:"ROUTER"`
	Session    SessionConfig    `yaml:"session" env:"SESSION"`
	Completion CompletionConfig `yaml:"completion" env:"COMPLETION"`
	Remote     RemoteConfig     `yaml:"remote" env:"REMOTE"`

	// Models, agents and handoffs are only configurable through YAML.
	Models   map[string]ModelConfig `yaml:"models"`
	Agents   []AgentConfig          `yaml:"agents"`
	Handoffs []HandoffConfig        `yaml:"handoffs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string          `yaml:"addr" env:"ADDR"`
	MetricsAddr     string          `yaml:"metrics_addr" env:"METRICS_ADDR"` // empty disables /metrics
	SessionHeader   string          `yaml:"session_header" env:"SESSION_HEADER"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// RateLimitConfig configures the token bucket in front of /chat. RPS 0
// disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS"`
	Burst int     `yaml:"burst" env:"BURST"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RouterConfig configures the conversation router.
type RouterConfig struct {
	MaxHops        int    `yaml:"max_hops" env:"MAX_HOPS"`
	EntryAgent     string `yaml:"entry_agent" env:"ENTRY_AGENT"`
	VerifySessions bool   `yaml:"verify_sessions" env:"VERIFY_SESSIONS"`
}

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

// SessionConfig selects and configures the conversation store.
type SessionConfig struct {
	Backend string       `yaml:"backend" env:"BACKEND"`
	Redis   RedisConfig  `yaml:"redis" env:"REDIS"`
	SQLite  SQLiteConfig `yaml:"sqlite" env:"SQLITE"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr      string        `yaml:"addr" env:"ADDR"`
	Password  string        `yaml:"password" env:"PASSWORD"`
	DB        int           `yaml:"db" env:"DB"`
	KeyPrefix string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
}

// SQLiteConfig configures the SQLite session backend.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// CompletionConfig bounds the model-backed completion loop.
type CompletionConfig struct {
	MaxModelCalls      int `yaml:"max_model_calls" env:"MAX_MODEL_CALLS"`
	MaxHistoryMessages int `yaml:"max_history_messages" env:"MAX_HISTORY_MESSAGES"`
	MaxParallelTools   int `yaml:"max_parallel_tools" env:"MAX_PARALLEL_TOOLS"`
}

// RemoteConfig configures the hosted agent backend.
type RemoteConfig struct {
	Endpoint     string        `yaml:"endpoint" env:"ENDPOINT"`
	APIVersion   string        `yaml:"api_version" env:"API_VERSION"`
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	AgentID      string        `yaml:"agent_id" env:"AGENT_ID"` // used by remote agents without remote_agent_id
	OAuth        OAuthConfig   `yaml:"oauth" env:"OAUTH"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	RunTimeout   time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
	TrimSuffixes []string      `yaml:"trim_suffixes" env:"TRIM_SUFFIXES"`
}

// OAuthConfig enables client credentials auth when TokenURL is set.
type OAuthConfig struct {
	TokenURL     string   `yaml:"token_url" env:"TOKEN_URL"`
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string `yaml:"scopes" env:"SCOPES"`
}

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

// ModelConfig describes a named chat model.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	APIKeyEnv   string  `yaml:"api_key_env"` // read the key from this variable when api_key is empty
	BaseURL     string  `yaml:"base_url"`
	APIVersion  string  `yaml:"api_version"` // azure only
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// AgentConfig describes one agent. Local agents name a model, hosted agents
// set remote.
type AgentConfig struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Instruction   string   `yaml:"instruction"`
	Model         string   `yaml:"model"`
	Capabilities  []string `yaml:"capabilities"`
	Remote        bool     `yaml:"remote"`
	RemoteAgentID string   `yaml:"remote_agent_id"`
	Entry         bool     `yaml:"entry"`
}

// HandoffConfig describes one delegation edge.
type HandoffConfig struct {
	Source      string `yaml:"source"`
	Target      string `yaml:"target"`
	Description string `yaml:"description"`
}

// Disclaimer appended by the default hosted research agent.
const Disclaimer = "\nAI tarafından oluşturulan içerik hatalı olabilir"

// HotelsHandoff is the description of the default Triage to Research edge.
const HotelsHandoff = "Transfer to this agent if the question/task is related to hotels"

// DefaultConfig returns the customer-support deployment.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Log:        logging.Config{Level: "info", Format: "json"},
		Telemetry:  DefaultTelemetryConfig(),
		Router:     RouterConfig{MaxHops: 1},
		Session:    DefaultSessionConfig(),
		Completion: CompletionConfig{MaxModelCalls: 8, MaxHistoryMessages: 20},
		Remote:     DefaultRemoteConfig(),
		Models: map[string]ModelConfig{
			"default": {Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
		},
		Agents:   DefaultAgents(),
		Handoffs: DefaultHandoffs(),
	}
}

// DefaultServerConfig returns the HTTP defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8000",
		MetricsAddr:     ":9091",
		SessionHeader:   "X-Session-ID",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    1 << 20,
		RateLimit:       RateLimitConfig{RPS: 0, Burst: 20},
	}
}

// DefaultTelemetryConfig returns disabled tracing with local collector defaults.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentrouter",
		SampleRate:   0.1,
	}
}

// DefaultSessionConfig uses hosted threads as sessions.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Backend: BackendRemote,
		Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "agentrouter:"},
		SQLite:  SQLiteConfig{Path: "data/sessions.db"},
	}
}

// DefaultRemoteConfig returns hosted backend defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		APIVersion:   "2025-05-01",
		Timeout:      30 * time.Second,
		PollInterval: 500 * time.Millisecond,
		RunTimeout:   2 * time.Minute,
		TrimSuffixes: []string{Disclaimer},
	}
}

// DefaultAgents returns the support agents and the hosted research agent.
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{
			Name:        "TriageAgent",
			Description: "A customer support agent that triages issues.",
			Instruction: "Handle customer requests.",
			Model:       "default",
			Entry:       true,
		},
		{
			Name:         "RefundAgent",
			Description:  "A customer support agent that handles refunds.",
			Instruction:  "Handle refund requests.",
			Model:        "default",
			Capabilities: []string{"process_refund"},
		},
		{
			Name:         "OrderStatusAgent",
			Description:  "A customer support agent that checks order status.",
			Instruction:  "Handle order status requests.",
			Model:        "default",
			Capabilities: []string{"check_order_status"},
		},
		{
			Name:         "OrderReturnAgent",
			Description:  "A customer support agent that handles order returns.",
			Instruction:  "Handle order return requests.",
			Model:        "default",
			Capabilities: []string{"process_return"},
		},
		{
			Name:        "ResearchAgent",
			Description: "A hosted research agent that answers travel and hotel questions.",
			Remote:      true,
		},
	}
}

// DefaultHandoffs returns the edges out of the triage agent.
func DefaultHandoffs() []HandoffConfig {
	return []HandoffConfig{
		{Source: "TriageAgent", Target: "ResearchAgent", Description: HotelsHandoff},
		{Source: "TriageAgent", Target: "RefundAgent", Description: "Transfer to this agent if the customer wants a refund"},
		{Source: "TriageAgent", Target: "OrderStatusAgent", Description: "Transfer to this agent if the customer asks about the status of an order"},
		{Source: "TriageAgent", Target: "OrderReturnAgent", Description: "Transfer to this agent if the customer wants to return an order"},
	}
}

// Agent returns the named agent configuration.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// HasRemoteAgents reports whether any agent runs on the hosted backend.
func (c *Config) HasRemoteAgents() bool {
	for _, a := range c.Agents {
		if a.Remote {
			return true
		}
	}
	return false
}

// RemoteAgentID resolves the hosted agent id of a.
func (c *Config) RemoteAgentID(a AgentConfig) string {
	if a.RemoteAgentID != "" {
		return a.RemoteAgentID
	}
	return c.Remote.AgentID
}
