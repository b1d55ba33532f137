// Package password hashes the passwords of legacy email/password accounts
// with Argon2id and verifies them during the login-and-link fallback.
//
// Hashes use the PHC string layout:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The package never stores passwords and never logs them.
package password
