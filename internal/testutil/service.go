package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrouter/core"
)

type step struct {
	outcome core.Outcome
	err     error
}

// ScriptedService is a core.CompletionService replaying scripted outcomes in
// order and recording every request. An exhausted script fails the call.
type ScriptedService struct {
	mu       sync.Mutex
	steps    []step
	requests []core.Request
}

// NewScriptedService creates a service that answers with outcomes in order.
func NewScriptedService(outcomes ...core.Outcome) *ScriptedService {
	s := &ScriptedService{}
	for _, o := range outcomes {
		s.steps = append(s.steps, step{outcome: o})
	}
	return s
}

// Reply creates a service that always answers with text.
func Reply(text string) *ScriptedService {
	return NewScriptedService(core.FinalReply{Text: text})
}

// Then appends another outcome (chainable).
func (s *ScriptedService) Then(o core.Outcome) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{outcome: o})
	return s
}

// Reset replaces the remaining script with outcomes (chainable).
func (s *ScriptedService) Reset(outcomes ...core.Outcome) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = s.steps[:0]
	for _, o := range outcomes {
		s.steps = append(s.steps, step{outcome: o})
	}
	return s
}

// Fail appends a failing call (chainable).
func (s *ScriptedService) Fail(err error) *ScriptedService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{err: err})
	return s
}

// Respond implements core.CompletionService.
func (s *ScriptedService) Respond(ctx context.Context, req core.Request) (core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if len(s.steps) == 0 {
		return nil, fmt.Errorf("scripted service: no outcome left for %s", req.Agent)
	}

	next := s.steps[0]
	// The last step repeats so a single scripted reply serves every turn.
	if len(s.steps) > 1 {
		s.steps = s.steps[1:]
	}
	return next.outcome, next.err
}

// Calls returns the number of Respond invocations.
func (s *ScriptedService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every received request.
func (s *ScriptedService) Requests() []core.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Request(nil), s.requests...)
}
