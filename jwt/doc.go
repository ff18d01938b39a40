// Package jwt issues and verifies the three token families used by authcore:
// access tokens for APIs, refresh tokens for rotation, and session tokens for
// the login cookie.
//
// Every family is signed with the same asymmetric key pair but carries a
// distinct audience, so a token minted for one purpose is rejected by the
// decoder of any other. Decoding pins exactly one algorithm, the issuer and
// the audience, and requires sub, exp, iat and jti.
//
// # What this package must NOT do
//
//   - Accept symmetric (HMAC) or "none" algorithms.
//   - Leak library-specific error values; callers only see [ErrTokenExpired]
//     and [ErrTokenInvalid].
package jwt
