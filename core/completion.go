package core

import "context"

// Outcome is the closed result of a single dispatch: either FinalReply or
// Transfer. Concrete types implement the unexported isOutcome marker.
type Outcome interface{ isOutcome() }

// FinalReply terminates the turn with Text as the answer.
type FinalReply struct {
	Text string
}

func (FinalReply) isOutcome() {}

// Transfer asks the router to continue the turn with Target. Text carries any
// interim message the transferring agent produced; it is recorded on the Turn
// but never returned to the caller.
type Transfer struct {
	Target string
	Text   string
}

func (Transfer) isOutcome() {}

// Request is everything a CompletionService receives for one dispatch.
type Request struct {
	Agent        string           // responding agent name
	Description  string           // agent description
	Instruction  string           // system prompt
	Capabilities []Capability     // capabilities attached to the agent
	Handoffs     []DelegationEdge // legal transfer targets from Agent
	Task         string           // the caller's message
	SessionID    string           // opaque conversation identifier
	Hop          int              // 0 for the entry agent, incremented per handoff
}

// CompletionService answers a task on behalf of an agent. Implementations
// decide whether to reply or transfer; the router enforces legality.
type CompletionService interface {
	Respond(ctx context.Context, req Request) (Outcome, error)
}

// CompletionFunc adapts an ordinary function to CompletionService.
type CompletionFunc func(ctx context.Context, req Request) (Outcome, error)

// Respond implements CompletionService.
func (f CompletionFunc) Respond(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}
