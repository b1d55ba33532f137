package backend

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/internal/rate"
	"github.com/ownid/ownid-go/internal/stores"
	"github.com/ownid/ownid-go/jwt"
	"github.com/ownid/ownid-go/password"
)

// Service implements [ownid.Backend].
type Service struct {
	accounts   *stores.AccountStore
	nonces     *stores.NonceStore
	limiter    *rate.Limiter
	hasher     *password.Hasher
	assertions *jwt.Manager
	ids        *jwt.Manager
	log        *slog.Logger
}

var _ ownid.Backend = (*Service)(nil)

// New builds a Service over redisClient.
func New(redisClient redis.UniversalClient, cfg Config, log *slog.Logger) (*Service, error) {
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Component("backend")
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	assertions, err := jwt.NewManager(jwt.Config{
		TTL:           time.Minute,
		SigningMethod: jwt.MethodEd25519,
		PublicKey:     cfg.AssertionKey,
		Issuer:        cfg.AssertionIssuer,
		Leeway:        5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("assertion verifier: %w", err)
	}

	secret := cfg.IDTokenSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return nil, err
		}
	}
	ids, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.IDTokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    secret,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("id token signer: %w", err)
	}

	return &Service{
		accounts:   stores.NewAccountStore(redisClient, cfg.KeyPrefix+":acct"),
		nonces:     stores.NewNonceStore(redisClient, cfg.KeyPrefix+":nonce"),
		limiter:    rate.New(redisClient, rate.Config{Prefix: cfg.KeyPrefix + ":link", MaxAttempts: cfg.LinkMaxAttempts, Window: cfg.LinkWindow}),
		hasher:     hasher,
		assertions: assertions,
		ids:        ids,
		log:        log,
	}, nil
}

// Register creates a passwordless account for email from a register result.
func (s *Service) Register(ctx context.Context, displayName, email string, result ownid.FlowResult) (*ownid.Session, error) {
	claims, err := s.verify(ctx, result)
	if err != nil {
		return nil, err
	}
	if stores.NormalizeEmail(claims.Email) != stores.NormalizeEmail(email) {
		return nil, fmt.Errorf("%w: email does not match flow", ownid.ErrInvalidResult)
	}

	existing, err := s.accounts.Get(ctx, email)
	switch {
	case err == nil:
		if existing.HasPassword() && !existing.HasCredential(claims.CredentialID) {
			return nil, ownid.ErrEmailAndPasswordRequired
		}
		return nil, ownid.ErrAccountExists
	case !errors.Is(err, stores.ErrAccountNotFound):
		return nil, s.serverError("load account", err)
	}

	if err := s.consume(ctx, result.Nonce); err != nil {
		return nil, err
	}

	acct := &stores.Account{
		UID:         uuid.NewString(),
		Email:       stores.NormalizeEmail(email),
		DisplayName: displayName,
		Credentials: []string{claims.CredentialID},
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, stores.ErrAccountExists) {
			return nil, ownid.ErrAccountExists
		}
		return nil, s.serverError("create account", err)
	}
	s.log.Info("account registered", "uid", acct.UID)
	return s.session(acct)
}

// Login signs in the account the result's credential is linked to.
func (s *Service) Login(ctx context.Context, result ownid.FlowResult) (*ownid.Session, error) {
	claims, err := s.verify(ctx, result)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.Get(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, stores.ErrAccountNotFound) {
			return nil, ownid.ErrUserNotFound
		}
		return nil, s.serverError("load account", err)
	}
	if !acct.HasCredential(claims.CredentialID) {
		if acct.HasPassword() {
			return nil, ownid.ErrEmailAndPasswordRequired
		}
		return nil, fmt.Errorf("%w: credential not linked", ownid.ErrInvalidCredentials)
	}

	if err := s.consume(ctx, result.Nonce); err != nil {
		return nil, err
	}
	return s.session(acct)
}

// LoginAndLink verifies the account password and links the result's
// credential to the account.
func (s *Service) LoginAndLink(ctx context.Context, email, plain string, result ownid.FlowResult) (*ownid.Session, error) {
	claims, err := s.verify(ctx, result)
	if err != nil {
		return nil, err
	}
	if stores.NormalizeEmail(claims.Email) != stores.NormalizeEmail(email) {
		return nil, fmt.Errorf("%w: email does not match flow", ownid.ErrInvalidResult)
	}

	if err := s.limiter.Check(ctx, email); err != nil {
		return nil, s.limitError(err)
	}

	acct, err := s.accounts.Get(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrAccountNotFound) {
			return nil, ownid.ErrUserNotFound
		}
		return nil, s.serverError("load account", err)
	}
	if !acct.HasPassword() {
		return nil, ownid.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(plain, acct.PasswordHash)
	if err != nil {
		return nil, s.serverError("verify password", err)
	}
	if !ok {
		if err := s.limiter.Fail(ctx, email); err != nil {
			s.log.Warn("record link failure", "error", err)
		}
		return nil, ownid.ErrInvalidCredentials
	}

	if err := s.consume(ctx, result.Nonce); err != nil {
		return nil, err
	}
	acct, err = s.accounts.LinkCredential(ctx, email, claims.CredentialID)
	if err != nil {
		return nil, s.serverError("link credential", err)
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn("reset link attempts", "error", err)
	}
	s.log.Info("credential linked", "uid", acct.UID)
	return s.session(acct)
}

// CreatePasswordAccount creates an email/password account with no
// passwordless credential.
func (s *Service) CreatePasswordAccount(ctx context.Context, displayName, email, plain string) (*ownid.Session, error) {
	if err := ownid.ValidateEmail(email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return nil, err
	}
	acct := &stores.Account{
		UID:          uuid.NewString(),
		Email:        stores.NormalizeEmail(email),
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, stores.ErrAccountExists) {
			return nil, ownid.ErrAccountExists
		}
		return nil, s.serverError("create account", err)
	}
	return s.session(acct)
}

// VerifyIDToken parses a session token issued by this service.
func (s *Service) VerifyIDToken(token string) (*ownid.Session, error) {
	claims, err := s.ids.ParseID(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ownid.ErrInvalidCredentials, err)
	}
	return &ownid.Session{
		UserID:      claims.UID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		IDToken:     token,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// verify checks that result carries a valid assertion whose nonce is live.
func (s *Service) verify(ctx context.Context, result ownid.FlowResult) (*jwt.AssertionClaims, error) {
	if result.Data == "" || result.Nonce == "" {
		return nil, fmt.Errorf("%w: missing data or nonce", ownid.ErrInvalidResult)
	}
	claims, err := s.assertions.ParseAssertion(result.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ownid.ErrInvalidResult, err)
	}
	if claims.Nonce != result.Nonce || claims.Purpose != string(result.Purpose) {
		return nil, fmt.Errorf("%w: assertion does not match result", ownid.ErrInvalidResult)
	}

	record, err := s.nonces.Peek(ctx, result.Nonce)
	if err != nil {
		if errors.Is(err, stores.ErrNonceNotFound) {
			return nil, fmt.Errorf("%w: nonce expired or already used", ownid.ErrInvalidResult)
		}
		return nil, s.serverError("load nonce", err)
	}
	if record.Purpose != claims.Purpose || !strings.EqualFold(record.Email, claims.Email) {
		return nil, fmt.Errorf("%w: nonce issued for another flow", ownid.ErrInvalidResult)
	}
	return claims, nil
}

func (s *Service) consume(ctx context.Context, nonce string) error {
	if _, err := s.nonces.Consume(ctx, nonce); err != nil {
		if errors.Is(err, stores.ErrNonceNotFound) {
			return fmt.Errorf("%w: nonce already used", ownid.ErrInvalidResult)
		}
		return s.serverError("consume nonce", err)
	}
	return nil
}

func (s *Service) session(acct *stores.Account) (*ownid.Session, error) {
	token, exp, err := s.ids.SignID(jwt.IDClaims{
		UID:         acct.UID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Provider:    "ownid",
	})
	if err != nil {
		return nil, s.serverError("sign id token", err)
	}
	return &ownid.Session{
		UserID:      acct.UID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		IDToken:     token,
		ExpiresAt:   exp,
	}, nil
}

func (s *Service) limitError(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ownid.ErrLinkRateLimited
	}
	return s.serverError("check link attempts", err)
}

// serverError reports a store failure. A cancelled caller context is not a
// server failure and is returned as a cancellation.
func (s *Service) serverError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		s.log.Debug("backend "+op+" cancelled")
		return ownid.NewFlowFailure(ownid.KindCancelled, "", fmt.Errorf("%s: %w", op, err))
	}
	s.log.Error("backend "+op+" failed", "error", err)
	return ownid.NewFlowFailure(ownid.KindServerError, "server error, please try again", fmt.Errorf("%s: %w", op, err))
}
