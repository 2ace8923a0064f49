// Package model defines the provider-agnostic chat completion contract used by
// local agents.
//
// Core goals:
//   - A single synchronous Generate call per model turn
//   - Normalized function call representation (core.FunctionCallPart)
//   - Minimal, transport independent request/response shapes
//   - Lightweight scripting for tests (MockModel)
//
// Providers (OpenAI, Azure OpenAI, Anthropic) implement Model in sub-packages
// so completion services stay decoupled from vendor SDKs.
package model
