// Package handoff holds the delegation table: the static set of edges along
// which one agent may hand a conversation to another.
//
// A Table is built once at startup, sealed, and then shared read-only by
// every routing operation.
package handoff

import (
	"slices"
	"sync"

	"github.com/hupe1980/agentrouter/agent"
	"github.com/hupe1980/agentrouter/core"
)

// Table is a directed edge list over the agents of one registry. Edges from
// the same source keep their insertion order and are unique per target.
type Table struct {
	reg *agent.Registry

	mu     sync.RWMutex
	edges  map[string][]core.DelegationEdge
	order  []core.DelegationEdge
	sealed bool
}

// NewTable creates an empty table over reg.
func NewTable(reg *agent.Registry) *Table {
	return &Table{
		reg:   reg,
		edges: make(map[string][]core.DelegationEdge),
	}
}

// Build creates a table from the given edges and seals it.
func Build(reg *agent.Registry, edges ...core.DelegationEdge) (*Table, error) {
	t := NewTable(reg)
	for _, s := range edges {
		if err := t.AddEdge(s.Source, s.Target, s.Description); err != nil {
			return nil, err
		}
	}
	t.Seal()
	return t, nil
}

// AddEdge permits source to hand off to target. Both endpoints must be
// registered; the source is checked first. Re-adding an existing pair keeps
// the original description.
func (t *Table) AddEdge(source, target, description string) error {
	if _, ok := t.reg.Get(source); !ok {
		return &core.UnknownAgentError{Name: source, Role: "source"}
	}
	if _, ok := t.reg.Get(target); !ok {
		return &core.UnknownAgentError{Name: target, Role: "target"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return core.NewConfigurationError("handoff", "table is sealed; cannot add %s -> %s", source, target)
	}

	for _, e := range t.edges[source] {
		if e.Target == target {
			return nil
		}
	}

	edge := core.DelegationEdge{Source: source, Target: target, Description: description}
	t.edges[source] = append(t.edges[source], edge)
	t.order = append(t.order, edge)

	return nil
}

// Seal freezes the table. Further AddEdge calls fail.
func (t *Table) Seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (t *Table) Sealed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sealed
}

// EdgesFrom returns the legal handoff edges of name. The result is never nil.
func (t *Table) EdgesFrom(name string) []core.DelegationEdge {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.DelegationEdge, len(t.edges[name]))
	copy(out, t.edges[name])
	return out
}

// Allows reports whether source may hand off to target and returns the edge.
func (t *Table) Allows(source, target string) (core.DelegationEdge, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.edges[source] {
		if e.Target == target {
			return e, true
		}
	}
	return core.DelegationEdge{}, false
}

// Edges returns every edge in insertion order.
func (t *Table) Edges() []core.DelegationEdge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

// Registry returns the registry the table validates against.
func (t *Table) Registry() *agent.Registry { return t.reg }
