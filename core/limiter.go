package core

import (
	"errors"
	"fmt"
)

// ErrCallBudgetExhausted is wrapped by the error CallBudget.Spend returns.
var ErrCallBudgetExhausted = errors.New("model call budget exhausted")

// CallBudget counts the model round trips of one dispatch. A dispatch runs on
// a single goroutine, so the budget is not safe for concurrent use.
type CallBudget struct {
	Agent string
	Max   int // 0 is unlimited

	used int
}

// Spend records one model call. The call that would exceed Max is refused
// with a *BackendError naming the agent.
func (b *CallBudget) Spend() error {
	if b.Max > 0 && b.used >= b.Max {
		return &BackendError{
			Agent:   b.Agent,
			Message: fmt.Sprintf("exceeded max model calls: %d", b.Max),
			Err:     ErrCallBudgetExhausted,
		}
	}
	b.used++
	return nil
}

// Used returns the number of calls spent so far.
func (b *CallBudget) Used() int { return b.used }
