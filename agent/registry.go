package agent

import (
	"reflect"
	"slices"

	"github.com/hupe1980/agentrouter/core"
)

const component = "agent registry"

// Registry holds the fixed set of agents of one deployment. It is built once
// and never patched; rebuild it when agent definitions change.
type Registry struct {
	agents []*Agent
	byName map[string]*Agent
	entry  *Agent
}

// NewRegistry validates the agents and builds a registry that preserves the
// construction order.
func NewRegistry(agents ...*Agent) (*Registry, error) {
	if len(agents) == 0 {
		return nil, core.NewConfigurationError(component, "at least one agent is required")
	}

	r := &Registry{
		agents: make([]*Agent, 0, len(agents)),
		byName: make(map[string]*Agent, len(agents)),
	}

	// owners maps pointer-shaped capability instances to the agent holding
	// them. Value-typed capabilities carry no shared state and are skipped.
	owners := make(map[uintptr]string)

	for i, a := range agents {
		if a == nil {
			return nil, core.NewConfigurationError(component, "agent at position %d is nil", i)
		}
		if a.name == "" {
			return nil, core.NewConfigurationError(component, "agent at position %d has an empty name", i)
		}
		if _, dup := r.byName[a.name]; dup {
			return nil, core.NewConfigurationError(component, "duplicate agent name %q", a.name)
		}
		if a.service == nil {
			return nil, core.NewConfigurationError(component, "agent %q has no completion service", a.name)
		}

		names := make(map[string]struct{}, len(a.capabilities))
		for _, c := range a.capabilities {
			if c == nil {
				return nil, core.NewConfigurationError(component, "agent %q has a nil capability", a.name)
			}
			if _, dup := names[c.Name()]; dup {
				return nil, core.NewConfigurationError(component, "agent %q declares capability %q twice", a.name, c.Name())
			}
			names[c.Name()] = struct{}{}

			if ptr, ok := identity(c); ok {
				if owner, shared := owners[ptr]; shared {
					return nil, core.NewConfigurationError(component,
						"capability %q is attached to both %q and %q", c.Name(), owner, a.name)
				}
				owners[ptr] = a.name
			}
		}

		if a.entry {
			if r.entry != nil {
				return nil, core.NewConfigurationError(component,
					"agents %q and %q are both marked as entry", r.entry.name, a.name)
			}
			r.entry = a
		}

		r.agents = append(r.agents, a)
		r.byName[a.name] = a
	}

	if r.entry == nil {
		r.entry = r.agents[0]
	}

	return r, nil
}

func identity(c core.Capability) (uintptr, bool) {
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}

// ListAgents returns the agents in construction order. The returned slice is
// fresh on every call.
func (r *Registry) ListAgents() []*Agent { return slices.Clone(r.agents) }

// Get looks up an agent by name.
func (r *Registry) Get(name string) (*Agent, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the agent names in construction order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.agents))
	for i, a := range r.agents {
		names[i] = a.name
	}
	return names
}

// Entry returns the agent marked as entry, or the first registered agent.
func (r *Registry) Entry() *Agent { return r.entry }

// Len returns the number of agents.
func (r *Registry) Len() int { return len(r.agents) }
