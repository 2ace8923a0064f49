// Package support provides the customer-support capabilities of the default
// deployment. Every call to New returns a fresh instance, so agents never
// share a capability.
package support

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/tool"
)

// Capability names.
const (
	CheckOrderStatus = "check_order_status"
	ProcessRefund    = "process_refund"
	ProcessReturn    = "process_return"
)

// OrderArgs identifies an order.
type OrderArgs struct {
	OrderID string `json:"order_id" description:"The order identifier"`
}

// ReasonArgs identifies an order and why the customer wants it undone.
type ReasonArgs struct {
	OrderID string `json:"order_id" description:"The order identifier"`
	Reason  string `json:"reason" description:"Why the customer asks for it"`
}

type factory func(logger logging.Logger) core.Capability

var factories = map[string]factory{
	CheckOrderStatus: func(logger logging.Logger) core.Capability {
		return tool.NewFunctionToolFromStruct(CheckOrderStatus, "Check the status of an order", OrderArgs{},
			func(_ context.Context, args map[string]string) (string, error) {
				return fmt.Sprintf("Order %s is shipped and will arrive in 2-3 days.", args["order_id"]), nil
			}, withLogger(logger))
	},
	ProcessRefund: func(logger logging.Logger) core.Capability {
		return tool.NewFunctionToolFromStruct(ProcessRefund, "Process a refund for an order", ReasonArgs{},
			func(_ context.Context, args map[string]string) (string, error) {
				return fmt.Sprintf("Refund for order %s has been processed successfully.", args["order_id"]), nil
			}, withLogger(logger))
	},
	ProcessReturn: func(logger logging.Logger) core.Capability {
		return tool.NewFunctionToolFromStruct(ProcessReturn, "Process a return for an order", ReasonArgs{},
			func(_ context.Context, args map[string]string) (string, error) {
				return fmt.Sprintf("Return for order %s has been processed successfully.", args["order_id"]), nil
			}, withLogger(logger))
	},
}

func withLogger(logger logging.Logger) func(o *tool.FunctionOptions) {
	return func(o *tool.FunctionOptions) { o.Logger = logger }
}

// New builds a fresh instance of the named capability.
func New(name string, logger logging.Logger) (core.Capability, error) {
	f, ok := factories[name]
	if !ok {
		return nil, core.NewConfigurationError("support", "unknown capability %q (known: %v)", name, Names())
	}
	return f(logging.OrNoOp(logger)), nil
}

// NewSet builds fresh instances of all named capabilities.
func NewSet(names []string, logger logging.Logger) ([]core.Capability, error) {
	caps := make([]core.Capability, 0, len(names))
	for _, name := range names {
		c, err := New(name, logger)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// Names returns the known capability names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
