// Package core provides the foundational domain types and interfaces shared by
// the router and its collaborators. It defines:
//
//   - Capabilities (named operations a local agent may invoke)
//   - CompletionService (the backend that answers on behalf of an agent)
//   - ConversationStore / HistoryStore (opaque session lifecycle and transcript)
//   - Outcome (FinalReply or Transfer, the result of one dispatch)
//   - DelegationEdge and Turn (handoff rules and the record of one routing pass)
//   - The error taxonomy surfaced by registry, table and router
//
// Concrete backends (models, stores, hosted agents) live in their own packages
// and depend on these small interfaces only.
package core
