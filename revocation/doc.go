// Package revocation records revoked token identifiers (jti) until the token
// would have expired on its own.
//
// Entries carry a TTL equal to the token's remaining lifetime, so the
// denylist never outgrows the set of still-valid tokens. Revoking an
// already-expired token is a no-op.
//
// # What this package must NOT do
//
//   - Decide what a backend failure means; callers choose fail-closed or
//     fail-open.
package revocation
