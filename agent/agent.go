package agent

import (
	"slices"

	"github.com/hupe1980/agentrouter/core"
)

// Options configures an Agent. Use functional options with New to override
// defaults.
type Options struct {
	// Description is the human-readable purpose shown to other agents when
	// they consider a handoff.
	Description string

	// Instruction is the system prompt. It may use text/template syntax; the
	// completion service renders it with the agent name and handoff targets.
	Instruction string

	// Capabilities are the plugin functions this agent may invoke. A
	// capability instance belongs to exactly one agent.
	Capabilities []core.Capability

	// Entry marks the deployment's front door agent.
	Entry bool
}

// Agent is an immutable agent definition. All accessors are safe for
// concurrent use because nothing changes after New returns.
type Agent struct {
	name         string
	description  string
	instruction  string
	capabilities []core.Capability
	service      core.CompletionService
	entry        bool
}

// New creates an agent backed by the given completion service.
func New(name string, service core.CompletionService, optFns ...func(o *Options)) *Agent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:         name,
		description:  opts.Description,
		instruction:  opts.Instruction,
		capabilities: slices.Clone(opts.Capabilities),
		service:      service,
		entry:        opts.Entry,
	}
}

// Name returns the unique agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's purpose.
func (a *Agent) Description() string { return a.description }

// Instruction returns the raw instruction template.
func (a *Agent) Instruction() string { return a.instruction }

// Capabilities returns a copy of the agent's capability list.
func (a *Agent) Capabilities() []core.Capability { return slices.Clone(a.capabilities) }

// Service returns the completion service the agent dispatches to.
func (a *Agent) Service() core.CompletionService { return a.service }

// IsEntry reports whether the agent was explicitly marked as entry point.
func (a *Agent) IsEntry() bool { return a.entry }
