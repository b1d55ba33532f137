package backend

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/ownid/ownid-go/password"
)

// Config configures a [Service].
type Config struct {
	// KeyPrefix namespaces every Redis key the service writes.
	KeyPrefix string

	// IDTokenTTL is the lifetime of issued session tokens.
	IDTokenTTL time.Duration
	// IDTokenSecret signs session tokens (HS256). A random secret is
	// generated when empty.
	IDTokenSecret []byte
	Issuer        string
	Audience      string

	// AssertionKey verifies flow assertions minted by the flow host.
	AssertionKey    ed25519.PublicKey
	AssertionIssuer string

	Password password.Params

	// LinkMaxAttempts bounds failed login-and-link attempts per email
	// within LinkWindow. Zero disables the limit.
	LinkMaxAttempts int
	LinkWindow      time.Duration
}

// DefaultConfig returns the configuration the sample runs with. AssertionKey
// must still be set.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:       "ownid",
		IDTokenTTL:      time.Hour,
		Issuer:          "ownid-backend",
		Audience:        "ownid-sample",
		AssertionIssuer: "ownid-flowhost",
		Password:        password.DefaultParams(),
		LinkMaxAttempts: 5,
		LinkWindow:      15 * time.Minute,
	}
}

// Validate checks cfg for values the service cannot run with.
func (c *Config) Validate() error {
	if c.IDTokenTTL <= 0 {
		return errors.New("backend IDTokenTTL must be > 0")
	}
	if len(c.AssertionKey) != ed25519.PublicKeySize {
		return errors.New("backend AssertionKey must be an ed25519 public key")
	}
	if len(c.IDTokenSecret) > 0 && len(c.IDTokenSecret) < 32 {
		return errors.New("backend IDTokenSecret must be at least 32 bytes")
	}
	if c.LinkMaxAttempts < 0 {
		return errors.New("backend LinkMaxAttempts must be >= 0")
	}
	if c.LinkMaxAttempts > 0 && c.LinkWindow <= 0 {
		return errors.New("backend LinkWindow must be > 0 when link limiting is enabled")
	}
	return nil
}
