// Package internal holds helpers private to authcore: authorization code
// generation and hashing.
//
// # Sub-packages
//
//   - audit: asynchronous event relay to a caller-supplied sink
//   - database: gorm connection setup for the SQL-backed stores
//   - flows: the orchestration behind each Engine operation
package internal
