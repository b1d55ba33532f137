package ownid

import "regexp"

// emailPattern is the platform's standard email address pattern. It must
// match the whole input.
var emailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9+._%\-]{1,256}` +
		`@` +
		`[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}` +
		`(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`,
)

// ValidateEmail performs the syntactic check a host runs before launching a
// flow. It returns ErrEmailRequired for empty input and ErrEmailInvalid for
// anything the standard pattern rejects.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}
