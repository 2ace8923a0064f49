package tool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	MaxParallel int // 0 or <1 => no explicit limit
	Logger      logging.Logger
}

// Executor runs a batch of model-requested calls against an agent's
// capabilities. It never panics, returns exactly one response per call in the
// original order, and reports failures inside the response instead of as an
// error so the model can react to them.
type Executor struct {
	opts ExecutorOptions
}

// NewExecutor constructs an Executor.
func NewExecutor(optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Executor{opts: opts}
}

// Execute invokes every call. A cancelled context marks the remaining calls as
// failed without running them.
func (e *Executor) Execute(
	ctx context.Context,
	agent string,
	tools map[string]Tool,
	calls []core.FunctionCall,
) []core.FunctionResponse {
	n := len(calls)
	if n == 0 {
		return nil
	}

	responses := make([]core.FunctionResponse, n)

	maxPar := e.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	// the group context is not used: one failing call must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(maxPar)

	for i, fc := range calls {
		g.Go(func() error {
			responses[i] = e.executeOne(ctx, agent, tools, fc)
			return nil
		})
	}

	_ = g.Wait()

	e.opts.Logger.Debug(
		"agent.functions.batch.complete",
		"agent", agent,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return responses
}

func (e *Executor) executeOne(
	ctx context.Context,
	agent string,
	tools map[string]Tool,
	fc core.FunctionCall,
) (resp core.FunctionResponse) {
	resp = core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	start := time.Now()

	var (
		result string
		err    error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = &ToolError{Tool: fc.Name, Message: fmt.Sprintf("panic recovered: %v", r), Code: CodePanic}
				e.opts.Logger.Error("agent.function.panic", "agent", agent, "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()
		result, err = invoke(ctx, tools, fc)
	}()

	e.opts.Logger.Info(
		"agent.function.executed",
		"agent", agent,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.Response = result

	return resp
}

// invoke centralizes capability lookup, argument decoding and execution.
func invoke(ctx context.Context, tools map[string]Tool, fc core.FunctionCall) (string, error) {
	impl, ok := tools[fc.Name]
	if !ok {
		return "", NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), CodeNotFound)
	}

	args, err := DecodeArguments(fc.Arguments)
	if err != nil {
		return "", &ToolError{Tool: fc.Name, Message: err.Error(), Code: CodeValidation}
	}

	return impl.Invoke(ctx, args)
}
