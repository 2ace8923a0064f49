// Package testutil contains test doubles and fluent builders shared by the
// package tests: a scripted completion service, a counting conversation
// store, and builders for transcripts and model contents. They are not
// intended for production usage.
package testutil
