package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrouter/internal/util"
	"github.com/hupe1980/agentrouter/logging"
)

// Func is the signature of a capability implementation.
type Func func(ctx context.Context, args map[string]string) (string, error)

// FunctionTool exposes a plain Go function as a capability.
//
// Arguments are validated against the declared schema before the function
// runs. Failures are normalized to *ToolError:
//
//	*ToolError returned by fn  -> forwarded unchanged
//	validation failure         -> Code VALIDATION_ERROR
//	any other error            -> Code EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction, but each agent must
// own its instances; build one per agent rather than sharing.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	logger      logging.Logger
}

// FunctionOptions configures a FunctionTool.
type FunctionOptions struct {
	Logger logging.Logger
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	statusTool := NewFunctionTool(
//	  "check_order_status",
//	  "Check the status of an order",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "order_id": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"order_id"},
//	  },
//	  func(ctx context.Context, args map[string]string) (string, error) {
//	    return "Order " + args["order_id"] + " is shipped.", nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn Func,
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	opts := FunctionOptions{Logger: logging.NoOpLogger{}}
	for _, f := range optFns {
		f(&opts)
	}

	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema). Fields should be strings.
//
//	type RefundArgs struct {
//	  OrderID string `json:"order_id" description:"Order identifier"`
//	  Reason  string `json:"reason" description:"Refund reason"`
//	}
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn Func,
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Invoke validates args then calls the wrapped function.
func (t *FunctionTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateArguments(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return "", toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
