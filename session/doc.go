// Package session houses concrete implementations of core.ConversationStore
// and core.HistoryStore. The router depends only on the interfaces; the
// wiring layer decides which backend to instantiate:
//
//   - MemoryStore: process-local, for tests and single-instance demos
//   - RedisStore: shared across router instances, optional expiry
//   - SQLiteStore: durable single-node storage with schema migrations
//
// Hosted agent backends that own their threads (see package remote) provide
// their own store instead.
package session
