package flowhost

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/internal/stores"
	"github.com/ownid/ownid-go/jwt"
)

// Decision is what the user did in the flow.
type Decision int

const (
	Approve Decision = iota
	Cancel
	Reject
)

// Approver stands in for the user-facing step. It may block until the user
// acts or ctx is done.
type Approver interface {
	Decide(ctx context.Context, intent ownid.Intent) (Decision, error)
}

// ApproverFunc adapts a function to [Approver].
type ApproverFunc func(ctx context.Context, intent ownid.Intent) (Decision, error)

func (f ApproverFunc) Decide(ctx context.Context, intent ownid.Intent) (Decision, error) {
	return f(ctx, intent)
}

// Always returns an Approver that answers d for every intent.
func Always(d Decision) Approver {
	return ApproverFunc(func(context.Context, ownid.Intent) (Decision, error) {
		return d, nil
	})
}

// Config configures a [Host].
type Config struct {
	KeyPrefix    string
	NonceTTL     time.Duration
	AssertionTTL time.Duration
	Issuer       string
	// SigningKey signs assertions. A key is generated when nil.
	SigningKey ed25519.PrivateKey
}

// DefaultConfig returns the flow host defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:    "ownid",
		NonceTTL:     5 * time.Minute,
		AssertionTTL: 5 * time.Minute,
		Issuer:       "ownid-flowhost",
	}
}

// Host implements [ownid.SDK].
type Host struct {
	cfg      Config
	nonces   *stores.NonceStore
	signer   *jwt.Manager
	approver Approver
	log      *slog.Logger
	wg       sync.WaitGroup
}

var _ ownid.SDK = (*Host)(nil)

// credentialNamespace derives stable per-email credential ids.
var credentialNamespace = uuid.MustParse("6f1c2b7e-3b0a-4d8e-9a55-0f3f7f8f2a11")

// New builds a Host that records nonces in redisClient.
func New(redisClient redis.UniversalClient, cfg Config, approver Approver, log *slog.Logger) (*Host, error) {
	if redisClient == nil {
		return nil, errors.New("redis client required")
	}
	if approver == nil {
		return nil, errors.New("approver required")
	}
	if cfg.NonceTTL <= 0 || cfg.AssertionTTL <= 0 {
		return nil, errors.New("flowhost TTLs must be > 0")
	}
	if log == nil {
		log = logger.Component("flowhost")
	}

	key := cfg.SigningKey
	if key == nil {
		var err error
		if _, key, err = ed25519.GenerateKey(rand.Reader); err != nil {
			return nil, err
		}
		cfg.SigningKey = key
	}
	signer, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.AssertionTTL,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    key,
		PublicKey:     key.Public().(ed25519.PublicKey),
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return &Host{
		cfg:      cfg,
		nonces:   stores.NewNonceStore(redisClient, cfg.KeyPrefix+":nonce"),
		signer:   signer,
		approver: approver,
		log:      log,
	}, nil
}

// PublicKey returns the key the backend verifies assertions with.
func (h *Host) PublicKey() ed25519.PublicKey {
	return h.cfg.SigningKey.Public().(ed25519.PublicKey)
}

func (h *Host) CreateRegisterIntent(locale, email string) (ownid.Intent, error) {
	return h.intent(ownid.PurposeRegister, locale, email)
}

func (h *Host) CreateLoginIntent(locale, email string) (ownid.Intent, error) {
	return h.intent(ownid.PurposeLogin, locale, email)
}

func (h *Host) intent(purpose ownid.Purpose, locale, email string) (ownid.Intent, error) {
	if strings.TrimSpace(locale) == "" {
		return ownid.Intent{}, errors.New("locale required")
	}
	if email == "" {
		return ownid.Intent{}, ownid.ErrEmailRequired
	}
	return ownid.Intent{
		ID:        uuid.NewString(),
		Purpose:   purpose,
		Locale:    locale,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Launch runs the flow for intent in the background and calls done once.
func (h *Host) Launch(ctx context.Context, intent ownid.Intent, done func(ownid.Response)) {
	if ctx == nil {
		ctx = context.Background()
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		done(h.run(ctx, intent))
	}()
}

// Wait blocks until every launched flow has delivered its response.
func (h *Host) Wait() {
	h.wg.Wait()
}

func (h *Host) run(ctx context.Context, intent ownid.Intent) ownid.Response {
	if ctx.Err() != nil {
		return cancelled()
	}

	decision, err := h.approver.Decide(ctx, intent)
	if err != nil {
		if ownid.IsCancelled(err) || ctx.Err() != nil {
			return cancelled()
		}
		h.log.Error("flow step failed", "intent", intent.ID, "error", err)
		return failure(ownid.KindServerError, err.Error(), err)
	}

	switch decision {
	case Cancel:
		return cancelled()
	case Reject:
		return failure(ownid.KindOther, "flow rejected", nil)
	}

	nonce := uuid.NewString()
	err = h.nonces.Save(ctx, nonce, &stores.NonceRecord{
		Purpose:  string(intent.Purpose),
		Email:    stores.NormalizeEmail(intent.Email),
		IntentID: intent.ID,
	}, h.cfg.NonceTTL)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		h.log.Error("record nonce", "intent", intent.ID, "error", err)
		return failure(ownid.KindServerError, "server error, please try again", err)
	}

	token, _, err := h.signer.SignAssertion(jwt.AssertionClaims{
		Purpose:      string(intent.Purpose),
		Email:        stores.NormalizeEmail(intent.Email),
		CredentialID: CredentialID(intent.Email),
		Nonce:        nonce,
	})
	if err != nil {
		h.log.Error("sign assertion", "intent", intent.ID, "error", err)
		return failure(ownid.KindServerError, "server error, please try again", err)
	}
	// Abandoned while the result was prepared; the nonce expires on its own.
	if ctx.Err() != nil {
		return cancelled()
	}

	return ownid.Response{
		ResultCode: ownid.ResultOK,
		Result: &ownid.FlowResult{
			Purpose: intent.Purpose,
			Nonce:   nonce,
			Data:    token,
			Email:   intent.Email,
		},
	}
}

// CredentialID is the device credential id the host reports for email.
func CredentialID(email string) string {
	return uuid.NewSHA1(credentialNamespace, []byte(stores.NormalizeEmail(email))).String()
}

func cancelled() ownid.Response {
	return ownid.Response{ResultCode: ownid.ResultCanceled, Err: ownid.ErrCancelled}
}

func failure(kind ownid.FailureKind, message string, cause error) ownid.Response {
	return ownid.Response{
		ResultCode: ownid.ResultOK,
		Err:        ownid.NewFlowFailure(kind, message, cause),
	}
}
