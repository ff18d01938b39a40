// Package codes persists OAuth authorization codes and enforces their
// single-use contract.
//
// Records are keyed by the SHA-256 hex digest of the raw code; the raw value
// never reaches a store. [Store.MarkUsed] is the only transition and it is
// atomic in every backend: the in-memory store uses compare-and-swap, the
// Redis store a Lua script, and the SQL store a conditional UPDATE whose
// affected-row count decides the winner.
package codes
