// Package pkce implements the S256 proof-key-for-code-exchange primitives
// used by the authorization code flow.
//
// # Architecture boundaries
//
// The package is pure computation. It generates verifiers, derives
// challenges and compares them; storage of challenges belongs to the code
// store and orchestration to the engine.
//
// # What this package must NOT do
//
//   - Accept the "plain" transform.
//   - Compare secrets with non constant-time equality.
package pkce
