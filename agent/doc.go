// Package agent defines immutable agent definitions and the Registry that
// holds the fixed set of agents for one deployment.
//
// An Agent couples a name, a description, an instruction and an optional set
// of capabilities with the core.CompletionService that answers on its behalf.
// Agents never change after construction, so a Registry is safe to share
// across any number of concurrent routing operations.
//
// Registry construction validates the deployment:
//   - agent names are non-empty and unique
//   - every agent has a completion service
//   - a capability instance is attached to exactly one agent
//   - at most one agent is marked as entry point
//
// Violations are reported as *core.ConfigurationError.
package agent
