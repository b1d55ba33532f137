package ownid

import (
	"context"
	"errors"
)

var (
	// ErrCancelled signals that the user abandoned the flow. It is re-raised
	// to the caller and never shown.
	ErrCancelled = errors.New("flow cancelled")
	// ErrEmailAndPasswordRequired signals that the email belongs to a password
	// account which must be linked before passwordless login succeeds.
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	// ErrServerError is reported when the SDK or backend service failed.
	ErrServerError = errors.New("server error")
	// ErrEmailRequired is returned by ValidateEmail for empty input.
	ErrEmailRequired = errors.New("please enter email")
	// ErrEmailInvalid is returned by ValidateEmail for malformed input.
	ErrEmailInvalid = errors.New("the email is not valid")
	// ErrUnknownPurpose is reported for results with an unrecognized purpose.
	ErrUnknownPurpose = errors.New("unknown flow purpose")
	// ErrFlowInProgress is returned when a flow is started while another is running.
	ErrFlowInProgress = errors.New("flow already in progress")
	// ErrNoFlow is returned by Client.Await when no flow was started.
	ErrNoFlow = errors.New("no flow started")
	// ErrClientNotReady is returned when a nil or unbuilt client is used.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrUserNotFound is returned by backends when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by backends when registering a taken email.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials is returned by backends for a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResult is returned by backends for a forged, expired or replayed result.
	ErrInvalidResult = errors.New("invalid flow result")
	// ErrLinkRateLimited is returned by backends after too many failed link attempts.
	ErrLinkRateLimited = errors.New("link attempts rate limited")
)

// FailureKind is the declared kind of a [FlowFailure].
type FailureKind string

const (
	KindCancelled                FailureKind = "cancelled"
	KindEmailAndPasswordRequired FailureKind = "emailAndPasswordRequired"
	KindServerError              FailureKind = "serverError"
	KindOther                    FailureKind = "other"
)

// FlowFailure is an error produced by the SDK or backend with a declared kind
// and a human-readable message.
type FlowFailure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// NewFlowFailure builds a failure of the given kind.
func NewFlowFailure(kind FailureKind, message string, cause error) *FlowFailure {
	return &FlowFailure{Kind: kind, Message: message, Err: cause}
}

func (f *FlowFailure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Message != "" {
		return f.Message
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return string(f.Kind)
}

func (f *FlowFailure) Unwrap() error {
	return f.Err
}

// Is lets errors.Is match a FlowFailure against the sentinel of its kind.
func (f *FlowFailure) Is(target error) bool {
	switch target {
	case ErrCancelled:
		return f.Kind == KindCancelled
	case ErrEmailAndPasswordRequired:
		return f.Kind == KindEmailAndPasswordRequired
	case ErrServerError:
		return f.Kind == KindServerError
	}
	return false
}

// KindOf classifies err. A declared FlowFailure kind wins; otherwise the
// sentinels and context.Canceled are matched through the wrap chain.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var ff *FlowFailure
	if errors.As(err, &ff) && ff.Kind != "" {
		return ff.Kind
	}
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrEmailAndPasswordRequired):
		return KindEmailAndPasswordRequired
	case errors.Is(err, ErrServerError):
		return KindServerError
	default:
		return KindOther
	}
}

// IsCancelled reports whether err is a user abandonment.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// messageOf returns the text shown to the user for err.
func messageOf(err error) string {
	var ff *FlowFailure
	if errors.As(err, &ff) && ff.Message != "" {
		return ff.Message
	}
	return err.Error()
}
