// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function takes a typed dependency struct and returns a result
// carrying either the success payload or a Failure kind. The root package
// maps failure kinds onto its error taxonomy, metrics and audit events, so
// flows stay free of HTTP and logging concerns and can be tested with
// in-memory stores.
//
// # Architecture boundaries
//
// Flows coordinate the code store, client registry, token manager,
// revocation store and user lookup. They do NOT own any of these; the
// Engine does.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root authcore package.
//   - Log or return raw codes, verifiers, tokens or passwords.
package flows
