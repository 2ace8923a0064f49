package core

import "time"

// DelegationEdge is a permitted handoff from Source to Target. Description
// tells the source agent when the transfer applies.
type DelegationEdge struct {
	Source      string `json:"source" yaml:"source"`
	Target      string `json:"target" yaml:"target"`
	Description string `json:"description" yaml:"description"`
}

// Turn records one routing operation. It is returned to the caller for
// inspection and never persisted by the router.
type Turn struct {
	Input      string
	SessionID  string
	EntryAgent string
	Handoffs   []DelegationEdge // followed edges, in order
	Interim    []string         // Interim[i] is the text sent with Handoffs[i], may be empty
	Responder  string
	Output     string
	StartedAt  time.Time
	Duration   time.Duration
}

// Hops returns the number of followed handoff edges.
func (t Turn) Hops() int { return len(t.Handoffs) }
