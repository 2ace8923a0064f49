// Package tool implements the capabilities local agents can invoke: plain Go
// functions exposed with a JSON schema of named string arguments, the
// transfer_to_agent definition used to express handoff intents, and a batch
// executor that runs model-requested calls with validation, panic safety and
// bounded parallelism.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/internal/util"
)

// Tool is the capability contract; kept as an alias so call sites in this
// package read naturally.
type Tool = core.Capability

// ValidationError describes the argument a capability rejected.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Index builds a name lookup for a capability set. Later duplicates are ignored.
func Index(tools []Tool) map[string]Tool {
	idx := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if _, exists := idx[t.Name()]; !exists {
			idx[t.Name()] = t
		}
	}
	return idx
}
