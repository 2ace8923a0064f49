package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrouter/core"
)

// TransferToolName is the function name models call to express a handoff.
const TransferToolName = "transfer_to_agent"

// TransferDefinition describes the transfer_to_agent function offered to a
// model. Its target enum is restricted to the legal edges of the calling agent.
type TransferDefinition struct {
	edges []core.DelegationEdge
}

// NewTransferDefinition builds the definition for the given outgoing edges.
func NewTransferDefinition(edges []core.DelegationEdge) *TransferDefinition {
	return &TransferDefinition{edges: edges}
}

// Name returns transfer_to_agent.
func (d *TransferDefinition) Name() string { return TransferToolName }

// Description lists each target with its edge description.
func (d *TransferDefinition) Description() string {
	var b strings.Builder
	b.WriteString("Transfer the conversation to another agent. Only call this when one of the following agents is better suited:")
	for _, e := range d.edges {
		fmt.Fprintf(&b, "\n- %s: %s", e.Target, e.Description)
	}
	return b.String()
}

// Parameters returns the schema with agent_name restricted to legal targets.
func (d *TransferDefinition) Parameters() map[string]any {
	targets := make([]any, 0, len(d.edges))
	for _, e := range d.edges {
		targets = append(targets, e.Target)
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Name of the agent to transfer to",
				"enum":        targets,
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Optional note for the customer while transferring",
			},
		},
		"required": []string{"agent_name"},
	}
}

// ParseTransfer extracts the target agent and optional message from the raw
// JSON arguments of a transfer_to_agent call. Legality is not checked here.
func ParseTransfer(arguments string) (target, message string, err error) {
	args, err := DecodeArguments(arguments)
	if err != nil {
		return "", "", err
	}

	target = strings.TrimSpace(args["agent_name"])
	if target == "" {
		// some models use the older field name
		target = strings.TrimSpace(args["agent"])
	}
	if target == "" {
		return "", "", fmt.Errorf("field 'agent_name' must be non-empty string")
	}

	return target, args["message"], nil
}
