// Package password hashes and verifies login passwords with Argon2id.
//
// Hashes use the PHC string layout:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login. [Argon2.VerifyDummy]
// burns the same work as a real verification and is used when the account
// does not exist.
//
// The package never stores passwords and never logs them.
package password
