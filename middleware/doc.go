// Package middleware adapts authcore.Engine to net/http.
//
// # Handlers
//
//   - [ClientIP] records the caller address for rate limiting and audit.
//   - [Guard] requires a valid, unrevoked bearer access token.
//   - [RateLimit] applies a token bucket and emits X-RateLimit-* headers.
//     The bucket follows the user when a bearer token verifies.
//   - [RequireRole] and [RequireAnyRole] gate on principal roles.
//   - [OrgScope] attaches organization membership from the X-Org-ID header.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to the
// engine, and errors are rendered with authcore.HTTPStatus.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access stores.
//   - Echo the specific failing check back to the client.
package middleware
