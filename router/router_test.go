package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentrouter/agent"
	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/handoff"
	"github.com/hupe1980/agentrouter/internal/testutil"
)

const hotels = "Transfer to this agent if the question/task is related to hotels"

type fixture struct {
	triage   *testutil.ScriptedService
	research *testutil.ScriptedService
	refund   *testutil.ScriptedService
	store    *testutil.CountingStore
	router   *Router
}

func newFixture(t *testing.T, triage *testutil.ScriptedService, optFns ...func(o *Options)) *fixture {
	t.Helper()

	f := &fixture{
		triage:   triage,
		research: testutil.Reply("Here are three hotels in Istanbul."),
		refund:   testutil.Reply("Refund for order 42 has been processed successfully."),
		store:    testutil.NewCountingStore("existing"),
	}

	reg, err := agent.NewRegistry(
		agent.New("TriageAgent", f.triage, func(o *agent.Options) {
			o.Description = "A customer support agent that triages issues."
			o.Instruction = "Handle customer requests."
		}),
		agent.New("ResearchAgent", f.research),
		agent.New("RefundAgent", f.refund),
	)
	require.NoError(t, err)

	table, err := handoff.Build(reg,
		core.DelegationEdge{Source: "TriageAgent", Target: "ResearchAgent", Description: hotels},
		core.DelegationEdge{Source: "ResearchAgent", Target: "RefundAgent", Description: "refunds"},
	)
	require.NoError(t, err)

	f.router, err = New(reg, table, f.store, optFns...)
	require.NoError(t, err)

	return f
}

func TestRoute_DirectReply(t *testing.T) {
	f := newFixture(t, testutil.Reply("Our return policy allows returns within 30 days."))

	res, err := f.router.Route(context.Background(), "What is your return policy?", "")
	require.NoError(t, err)

	assert.Equal(t, "Our return policy allows returns within 30 days.", res.Reply)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, "TriageAgent", res.Turn.EntryAgent)
	assert.Equal(t, "TriageAgent", res.Turn.Responder)
	assert.Zero(t, res.Turn.Hops())
	assert.Zero(t, f.research.Calls())

	req := f.triage.Requests()[0]
	assert.Equal(t, "TriageAgent", req.Agent)
	assert.Equal(t, "Handle customer requests.", req.Instruction)
	assert.Equal(t, "What is your return policy?", req.Task)
	assert.Equal(t, "session-1", req.SessionID)
	assert.Zero(t, req.Hop)
	require.Len(t, req.Handoffs, 1)
	assert.Equal(t, "ResearchAgent", req.Handoffs[0].Target)
}

func TestRoute_LegalTransfer(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "ResearchAgent", Text: "Let me check."}))

	res, err := f.router.Route(context.Background(), "Can you find a hotel in Istanbul?", "")
	require.NoError(t, err)

	assert.Equal(t, "Here are three hotels in Istanbul.", res.Reply)
	assert.Equal(t, "ResearchAgent", res.Turn.Responder)
	require.Equal(t, 1, res.Turn.Hops())
	assert.Equal(t, hotels, res.Turn.Handoffs[0].Description)
	assert.Equal(t, []string{"Let me check."}, res.Turn.Interim)

	require.Equal(t, 1, f.research.Calls())
	req := f.research.Requests()[0]
	assert.Equal(t, "Can you find a hotel in Istanbul?", req.Task)
	assert.Equal(t, res.SessionID, req.SessionID)
	assert.Equal(t, 1, req.Hop)
	assert.Empty(t, req.Handoffs, "hop budget exhausted, no further handoffs offered")
}

func TestRoute_Concurrent(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "ResearchAgent", Text: "Let me check."}))

	const n = 32

	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.router.Route(context.Background(), fmt.Sprintf("hotel %d", i), "")
		}()
	}
	wg.Wait()

	sessions := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Here are three hotels in Istanbul.", results[i].Reply)
		assert.Equal(t, "ResearchAgent", results[i].Turn.Responder)
		assert.Equal(t, []string{"Let me check."}, results[i].Turn.Interim)
		sessions[results[i].SessionID] = true
	}
	assert.Len(t, sessions, n)
	assert.Equal(t, n, f.triage.Calls())
	assert.Equal(t, n, f.research.Calls())
}

func TestRoute_IllegalTransfer(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "RefundAgent"}))

	res, err := f.router.Route(context.Background(), "I want a refund", "")
	assert.Nil(t, res)

	var illegal *core.IllegalHandoffError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "TriageAgent", illegal.Source)
	assert.Equal(t, "RefundAgent", illegal.Target)
	assert.Equal(t, "illegal handoff TriageAgent -> RefundAgent: no delegation edge", err.Error())

	assert.Zero(t, f.refund.Calls())
	assert.Zero(t, f.research.Calls())
}

func TestRoute_TransferToUnregisteredAgent(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "HotelAgent"}))

	_, err := f.router.Route(context.Background(), "hotel", "")

	var illegal *core.IllegalHandoffError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "HotelAgent", illegal.Target)
}

func TestRoute_HopLimit(t *testing.T) {
	chain := func(maxHops int) *fixture {
		f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "ResearchAgent"}),
			func(o *Options) { o.MaxHops = maxHops })
		// Research hands over to refund, which is a legal second hop.
		f.research.Reset(core.Transfer{Target: "RefundAgent"})
		return f
	}

	t.Run("default stops after one hop", func(t *testing.T) {
		f := chain(DefaultMaxHops)
		_, err := f.router.Route(context.Background(), "hotel refund", "")

		var illegal *core.IllegalHandoffError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, "hop limit reached", illegal.Reason)
		assert.Equal(t, "ResearchAgent", illegal.Source)
		assert.Zero(t, f.refund.Calls())
	})

	t.Run("two hops reach the refund agent", func(t *testing.T) {
		f := chain(2)
		res, err := f.router.Route(context.Background(), "hotel refund", "")
		require.NoError(t, err)
		assert.Equal(t, "RefundAgent", res.Turn.Responder)
		assert.Equal(t, 2, res.Turn.Hops())
	})

	t.Run("zero disables handoffs", func(t *testing.T) {
		f := chain(0)
		_, err := f.router.Route(context.Background(), "hotel", "")

		var illegal *core.IllegalHandoffError
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, "hop limit reached", illegal.Reason)
		assert.Empty(t, f.triage.Requests()[0].Handoffs)
		assert.Zero(t, f.research.Calls())
	})
}

func TestRoute_SessionReuse(t *testing.T) {
	f := newFixture(t, testutil.Reply("ok"))

	first, err := f.router.Route(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "session-1", first.SessionID)

	second, err := f.router.Route(context.Background(), "again", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// Unknown identifiers pass through unchanged without verification.
	third, err := f.router.Route(context.Background(), "again", "anything-goes")
	require.NoError(t, err)
	assert.Equal(t, "anything-goes", third.SessionID)

	assert.Equal(t, 1, f.store.Creates())
	assert.Zero(t, f.store.ExistsCalls())

	reqs := f.triage.Requests()
	assert.Equal(t, "session-1", reqs[0].SessionID)
	assert.Equal(t, "session-1", reqs[1].SessionID)
	assert.Equal(t, "anything-goes", reqs[2].SessionID)
}

func TestRoute_VerifySessions(t *testing.T) {
	f := newFixture(t, testutil.Reply("ok"), func(o *Options) { o.VerifySessions = true })

	res, err := f.router.Route(context.Background(), "hello", "existing")
	require.NoError(t, err)
	assert.Equal(t, "existing", res.SessionID)

	_, err = f.router.Route(context.Background(), "hello", "missing")
	var backendErr *core.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, 404, backendErr.Status)
	assert.Equal(t, 1, f.triage.Calls())
	assert.Equal(t, 2, f.store.ExistsCalls())
}

func TestRoute_EmptyTask(t *testing.T) {
	f := newFixture(t, testutil.Reply("ok"))

	_, err := f.router.Route(context.Background(), "   ", "")
	require.ErrorIs(t, err, core.ErrEmptyTask)
	assert.Zero(t, f.store.Creates())
	assert.Zero(t, f.triage.Calls())
}

func TestRoute_BackendErrors(t *testing.T) {
	t.Run("completion failure is wrapped and not retried", func(t *testing.T) {
		cause := errors.New("connection reset")
		f := newFixture(t, testutil.NewScriptedService().Fail(cause))

		_, err := f.router.Route(context.Background(), "hello", "")

		var backendErr *core.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, "TriageAgent", backendErr.Agent)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, f.triage.Calls())
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		remote := &core.BackendError{Agent: "TriageAgent", Status: 503, Message: "unavailable"}
		f := newFixture(t, testutil.NewScriptedService().Fail(remote))

		_, err := f.router.Route(context.Background(), "hello", "")
		assert.Same(t, remote, err)
	})

	t.Run("nil outcome", func(t *testing.T) {
		f := newFixture(t, testutil.NewScriptedService(nil))

		_, err := f.router.Route(context.Background(), "hello", "")
		var backendErr *core.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Contains(t, err.Error(), "no outcome")
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, testutil.Reply("ok"))
		f.store.FailWith(errors.New("threads unavailable"))

		_, err := f.router.Route(context.Background(), "hello", "")
		var backendErr *core.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Contains(t, err.Error(), "create session: threads unavailable")
		assert.Zero(t, f.triage.Calls())
	})
}

type mockService struct{ mock.Mock }

func (m *mockService) Respond(ctx context.Context, req core.Request) (core.Outcome, error) {
	args := m.Called(ctx, req)
	outcome, _ := args.Get(0).(core.Outcome)
	return outcome, args.Error(1)
}

func TestRoute_ContextPropagates(t *testing.T) {
	svc := &mockService{}
	svc.On("Respond", mock.Anything, mock.MatchedBy(func(req core.Request) bool {
		return req.Agent == "Solo" && req.Task == "ping"
	})).Return(core.FinalReply{Text: "pong"}, nil).Once()

	reg, err := agent.NewRegistry(agent.New("Solo", svc))
	require.NoError(t, err)

	r, err := New(reg, handoff.NewTable(reg), testutil.NewCountingStore())
	require.NoError(t, err)
	assert.True(t, r.Table().Sealed())

	res, err := r.Route(context.Background(), "ping", "s")
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Reply)
	svc.AssertExpectations(t)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	reg, err := agent.NewRegistry(agent.New("A", testutil.Reply("a")))
	require.NoError(t, err)
	other, err := agent.NewRegistry(agent.New("B", testutil.Reply("b")))
	require.NoError(t, err)

	store := testutil.NewCountingStore()

	tests := []struct {
		name  string
		build func() (*Router, error)
	}{
		{"nil registry", func() (*Router, error) { return New(nil, handoff.NewTable(reg), store) }},
		{"nil table", func() (*Router, error) { return New(reg, nil, store) }},
		{"nil store", func() (*Router, error) { return New(reg, handoff.NewTable(reg), nil) }},
		{"foreign table", func() (*Router, error) { return New(reg, handoff.NewTable(other), store) }},
		{"negative hops", func() (*Router, error) {
			return New(reg, handoff.NewTable(reg), store, func(o *Options) { o.MaxHops = -1 })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.build()
			assert.Nil(t, r)
			var cfgErr *core.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRoute_Callbacks(t *testing.T) {
	var seen []CallbackType
	record := func(ctx context.Context, c *CallbackContext) error {
		seen = append(seen, c.Type)
		return nil
	}

	cbs := NewCallbackManager()
	for _, typ := range []CallbackType{
		CallbackBeforeDispatch, CallbackAfterDispatch, CallbackOnHandoff, CallbackOnTurnComplete, CallbackOnError,
	} {
		cbs.Register(NewFunctionCallback(typ, record))
	}

	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "ResearchAgent"}),
		func(o *Options) { o.Callbacks = cbs })

	_, err := f.router.Route(context.Background(), "hotel", "")
	require.NoError(t, err)

	assert.Equal(t, []CallbackType{
		CallbackBeforeDispatch, CallbackAfterDispatch,
		CallbackOnHandoff,
		CallbackBeforeDispatch, CallbackAfterDispatch,
		CallbackOnTurnComplete,
	}, seen)
}

func TestRoute_BeforeDispatchCanAbort(t *testing.T) {
	veto := errors.New("blocked")
	cbs := NewCallbackManager()
	cbs.Register(NewFunctionCallback(CallbackBeforeDispatch, func(context.Context, *CallbackContext) error {
		return veto
	}))

	var failed error
	cbs.Register(NewFunctionCallback(CallbackOnError, func(_ context.Context, c *CallbackContext) error {
		failed = c.Err
		return nil
	}))

	f := newFixture(t, testutil.Reply("ok"), func(o *Options) { o.Callbacks = cbs })

	_, err := f.router.Route(context.Background(), "hello", "")
	assert.ErrorIs(t, err, veto)
	assert.ErrorIs(t, failed, veto)
	assert.Zero(t, f.triage.Calls())
	assert.Equal(t, 1, cbs.Len(CallbackBeforeDispatch))
}

func TestRoute_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, testutil.NewScriptedService(core.Transfer{Target: "ResearchAgent"}),
		func(o *Options) { o.Tracer = tp.Tracer(TracerName) })

	_, err := f.router.Route(context.Background(), "hotel", "")
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"router.dispatch", "router.dispatch", "router.Route"}, names)
}
