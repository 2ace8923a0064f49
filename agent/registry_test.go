package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/tool"
)

var echo = core.CompletionFunc(func(_ context.Context, req core.Request) (core.Outcome, error) {
	return core.FinalReply{Text: req.Task}, nil
})

func newCapability(name string) core.Capability {
	return tool.NewFunctionTool(name, name, nil, func(context.Context, map[string]string) (string, error) {
		return name, nil
	})
}

func TestNew(t *testing.T) {
	caps := []core.Capability{newCapability("check_order_status")}

	a := New("OrderStatusAgent", echo, func(o *Options) {
		o.Description = "A customer support agent that checks order status."
		o.Instruction = "Handle order status requests."
		o.Capabilities = caps
	})

	assert.Equal(t, "OrderStatusAgent", a.Name())
	assert.Equal(t, "A customer support agent that checks order status.", a.Description())
	assert.Equal(t, "Handle order status requests.", a.Instruction())
	assert.False(t, a.IsEntry())
	assert.NotNil(t, a.Service())

	// Mutating the caller's slice does not leak into the agent.
	caps[0] = nil
	require.Len(t, a.Capabilities(), 1)
	assert.NotNil(t, a.Capabilities()[0])
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(
		New("TriageAgent", echo),
		New("RefundAgent", echo),
		New("OrderStatusAgent", echo),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"TriageAgent", "RefundAgent", "OrderStatusAgent"}, reg.Names())
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "TriageAgent", reg.Entry().Name())

	a, ok := reg.Get("RefundAgent")
	require.True(t, ok)
	assert.Equal(t, "RefundAgent", a.Name())

	_, ok = reg.Get("Nobody")
	assert.False(t, ok)
}

func TestNewRegistry_ExplicitEntry(t *testing.T) {
	reg, err := NewRegistry(
		New("RefundAgent", echo),
		New("TriageAgent", echo, func(o *Options) { o.Entry = true }),
	)
	require.NoError(t, err)
	assert.Equal(t, "TriageAgent", reg.Entry().Name())
}

func TestNewRegistry_ConfigurationErrors(t *testing.T) {
	shared := newCapability("process_refund")

	tests := []struct {
		name   string
		agents []*Agent
		msg    string
	}{
		{
			name: "empty",
			msg:  "at least one agent is required",
		},
		{
			name:   "nil agent",
			agents: []*Agent{nil},
			msg:    "agent at position 0 is nil",
		},
		{
			name:   "empty name",
			agents: []*Agent{New("", echo)},
			msg:    "empty name",
		},
		{
			name:   "duplicate name",
			agents: []*Agent{New("TriageAgent", echo), New("TriageAgent", echo)},
			msg:    `duplicate agent name "TriageAgent"`,
		},
		{
			name:   "nil service",
			agents: []*Agent{New("TriageAgent", nil)},
			msg:    "has no completion service",
		},
		{
			name: "shared capability",
			agents: []*Agent{
				New("RefundAgent", echo, func(o *Options) { o.Capabilities = []core.Capability{shared} }),
				New("OrderReturnAgent", echo, func(o *Options) { o.Capabilities = []core.Capability{shared} }),
			},
			msg: `capability "process_refund" is attached to both "RefundAgent" and "OrderReturnAgent"`,
		},
		{
			name: "duplicate capability name",
			agents: []*Agent{
				New("RefundAgent", echo, func(o *Options) {
					o.Capabilities = []core.Capability{newCapability("process_refund"), newCapability("process_refund")}
				}),
			},
			msg: `declares capability "process_refund" twice`,
		},
		{
			name: "two entries",
			agents: []*Agent{
				New("A", echo, func(o *Options) { o.Entry = true }),
				New("B", echo, func(o *Options) { o.Entry = true }),
			},
			msg: `agents "A" and "B" are both marked as entry`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.agents...)
			assert.Nil(t, reg)

			var cfgErr *core.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "agent registry", cfgErr.Component)
			assert.Contains(t, cfgErr.Error(), tt.msg)
		})
	}
}

func TestRegistry_ListAgentsReturnsFreshSlice(t *testing.T) {
	reg, err := NewRegistry(New("A", echo), New("B", echo))
	require.NoError(t, err)

	first := reg.ListAgents()
	first[0] = nil

	second := reg.ListAgents()
	require.Len(t, second, 2)
	assert.Equal(t, "A", second[0].Name())
}

func TestProperty_Registry_ListAgentsIsOrderStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[A-Z][a-z]{2,8}Agent`), n, n, rapid.ID[string],
		).Draw(rt, "names")

		agents := make([]*Agent, len(names))
		for i, name := range names {
			agents[i] = New(name, echo, func(o *Options) {
				o.Description = fmt.Sprintf("agent %d", i)
			})
		}

		reg, err := NewRegistry(agents...)
		require.NoError(rt, err)

		for range 3 {
			listed := reg.ListAgents()
			require.Len(rt, listed, len(agents))
			for i := range agents {
				assert.Same(rt, agents[i], listed[i])
			}
		}
		assert.Equal(rt, names, reg.Names())
	})
}
