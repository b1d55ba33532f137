package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountExists           = errors.New("account already exists")
	ErrAccountRedisUnavailable = errors.New("account redis unavailable")
)

// Account is a user record keyed by normalized email. PasswordHash is empty
// for accounts created passwordless; Credentials lists the passwordless
// credential ids linked to the account.
type Account struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Credentials  []string  `json:"credentials,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCredential reports whether id is linked to the account.
func (a *Account) HasCredential(id string) bool {
	return slices.Contains(a.Credentials, id)
}

// HasPassword reports whether the account can sign in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

type AccountStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewAccountStore(redisClient redis.UniversalClient, prefix string) *AccountStore {
	if prefix == "" {
		prefix = "ownid:acct"
	}
	return &AccountStore{redis: redisClient, prefix: prefix}
}

// NormalizeEmail is the key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountStore) key(email string) string {
	return s.prefix + ":" + NormalizeEmail(email)
}

func (s *AccountStore) Get(ctx context.Context, email string) (*Account, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrAccountRedisUnavailable, err)
	}
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("%w: decode account: %v", ErrAccountRedisUnavailable, err)
	}
	return &acct, nil
}

// Create stores acct if no account exists for its email.
func (s *AccountStore) Create(ctx context.Context, acct *Account) error {
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, s.key(acct.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccountRedisUnavailable, err)
	}
	if !ok {
		return ErrAccountExists
	}
	return nil
}

// Update applies fn to the stored account under an optimistic transaction and
// persists the result. An error from fn aborts the update and is returned as is.
func (s *AccountStore) Update(ctx context.Context, email string, fn func(*Account) error) (*Account, error) {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		var (
			updated *Account
			fnErr   error
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var acct Account
			if err := json.Unmarshal(data, &acct); err != nil {
				return err
			}
			if fnErr = fn(&acct); fnErr != nil {
				return fnErr
			}
			acct.UpdatedAt = time.Now().UTC()

			encoded, err := json.Marshal(&acct)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			updated = &acct
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("%w: %w", ErrAccountRedisUnavailable, err)
		}
		return updated, nil
	}

	return nil, fmt.Errorf("%w: too much contention", ErrAccountRedisUnavailable)
}

// LinkCredential adds credentialID to the account for email.
func (s *AccountStore) LinkCredential(ctx context.Context, email, credentialID string) (*Account, error) {
	return s.Update(ctx, email, func(a *Account) error {
		if !a.HasCredential(credentialID) {
			a.Credentials = append(a.Credentials, credentialID)
		}
		return nil
	})
}
