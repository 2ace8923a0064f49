package testutil

import (
	"time"

	"github.com/hupe1980/agentrouter/core"
)

// HistoryBuilder helps construct transcripts with fluent chaining for tests.
// Example:
//
//	msgs := NewHistoryBuilder().User("hi").Assistant("TriageAgent", "hello").Build()
//
// Timestamps start at a fixed instant and advance one second per message so
// ordering assertions stay deterministic.
type HistoryBuilder struct {
	at   time.Time
	msgs []core.Message
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder {
	return &HistoryBuilder{at: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	return b.add(core.Message{Role: core.RoleUser, Text: text})
}

// Assistant appends an assistant message authored by agent (chainable).
func (b *HistoryBuilder) Assistant(agent, text string) *HistoryBuilder {
	return b.add(core.Message{Role: core.RoleAssistant, Author: agent, Text: text})
}

func (b *HistoryBuilder) add(m core.Message) *HistoryBuilder {
	m.CreatedAt = b.at
	b.at = b.at.Add(time.Second)
	b.msgs = append(b.msgs, m)
	return b
}

// Build returns a copy of the transcript.
func (b *HistoryBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}
