// Package authcore is an OAuth 2.1 authorization server core: PKCE-bound
// single-use authorization codes, JWT access/refresh/session tokens with
// disjoint audiences, refresh rotation with replay detection, jti
// revocation and token-bucket rate limiting.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types. Flow orchestration and audit dispatch
// live under internal/. Storage is pluggable through the interfaces in
// codes, clients, revocation, ratelimit and users; each has an in-memory
// implementation for single-process use and a Redis or SQL implementation
// for shared state.
//
// # What this package must NOT do
//
//   - Log or return raw authorization codes, PKCE verifiers, tokens or
//     passwords.
//   - Tell clients which check failed; errors are generic and the reason is
//     only logged.
//   - Import middleware or httpapi (no import cycles).
package authcore
