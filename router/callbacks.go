package router

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentrouter/core"
)

// CallbackType defines the lifecycle points of a routing operation where
// callbacks run.
type CallbackType string

const (
	// CallbackBeforeDispatch runs before a request is sent to an agent's
	// completion service. An error aborts the turn.
	CallbackBeforeDispatch CallbackType = "before_dispatch"

	// CallbackAfterDispatch runs after the completion service answered,
	// successfully or not.
	CallbackAfterDispatch CallbackType = "after_dispatch"

	// CallbackOnHandoff runs when a legal transfer is about to be followed.
	// An error aborts the turn.
	CallbackOnHandoff CallbackType = "on_handoff"

	// CallbackOnError runs once when a turn fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnTurnComplete runs once when a turn produced a final reply.
	CallbackOnTurnComplete CallbackType = "on_turn_complete"
)

// CallbackContext carries what a callback may inspect. Fields that do not
// apply to a lifecycle point are left zero.
type CallbackContext struct {
	Type      CallbackType
	Agent     string
	SessionID string
	Hop       int

	Request  *core.Request
	Outcome  core.Outcome
	Edge     *core.DelegationEdge
	Turn     *core.Turn
	Err      error
	Duration time.Duration
}

// Callback is a routing lifecycle hook. Callbacks run synchronously in
// registration order and must be fast.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a Callback.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackOnHandoff, func(ctx context.Context, c *CallbackContext) error {
//	    log.Printf("handoff %s -> %s", c.Edge.Source, c.Edge.Target)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager keeps callbacks per type. Registration and execution are
// safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds callbacks; several callbacks per type run in registration order.
func (cm *CallbackManager) Register(callbacks ...Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}
}

// Execute runs every callback registered for cbCtx.Type and stops at the
// first error.
func (cm *CallbackManager) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[cbCtx.Type]
	cm.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered callbacks of type t.
func (cm *CallbackManager) Len(t CallbackType) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[t])
}
