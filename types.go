package ownid

import (
	"context"
	"time"
)

// Purpose is the declared intent of a completed passwordless flow.
type Purpose string

const (
	// PurposeLogin marks a flow started with a login intent.
	PurposeLogin Purpose = "login"
	// PurposeRegister marks a flow started with a register intent.
	PurposeRegister Purpose = "register"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeRegister
}

// Activity result codes delivered with a [Response]. They mirror the codes
// the hosting platform reports when the user-facing flow returns.
const (
	ResultOK       = -1
	ResultCanceled = 0
)

// FlowResult is the success payload of a passwordless flow.
//
// It is produced once by the SDK, consumed once by the [Dispatcher] and never
// persisted by the host. Data is opaque to the host and is forwarded to the
// backend untouched.
type FlowResult struct {
	Purpose Purpose
	Nonce   string
	Data    string
	Email   string
}

// Identity is the account tuple supplied by the host application.
// Password is empty when the flow is passwordless.
type Identity struct {
	DisplayName string
	Email       string
	Password    string
}

// Intent is an SDK-created request to start a user-facing flow.
type Intent struct {
	ID        string
	Purpose   Purpose
	Locale    string
	Email     string
	CreatedAt time.Time
}

// Response is what [SDK.Launch] delivers, exactly once, when the flow ends.
// Exactly one of Result and Err is set.
type Response struct {
	ResultCode int
	Result     *FlowResult
	Err        error
}

// Session is the backend's view of a signed-in user.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
	IDToken     string
	ExpiresAt   time.Time
}

// OutcomeKind classifies what the user is shown after a dispatch.
type OutcomeKind string

const (
	OutcomeRegistered OutcomeKind = "registered"
	OutcomeLoggedIn   OutcomeKind = "loggedIn"
	OutcomeLinked     OutcomeKind = "linked"
	OutcomeFailed     OutcomeKind = "failed"
)

// UIState is the host UI state an outcome asks for.
type UIState int

const (
	// StateUnchanged asks the host to keep its current state.
	StateUnchanged UIState = -1
	// StateInitial is the pre-registration state the host starts in.
	StateInitial UIState = 0
	// StateLoginReady is entered after a successful registration.
	StateLoginReady UIState = 1
)

func (s UIState) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateInitial:
		return "initial"
	case StateLoginReady:
		return "login-ready"
	default:
		return "unknown"
	}
}

// Outcome is the user-visible result of [Dispatcher.Handle].
type Outcome struct {
	Kind    OutcomeKind
	Message string
	State   UIState
	Session *Session
}

// Outcome messages shown to the user.
const (
	MessageRegistered = "registered successfully"
	MessageLoggedIn   = "logged in"
	MessageLinked     = "linked and logged in"
)

// SDK is the passwordless SDK boundary: it builds intents and launches the
// user-facing flow. Launch must not block; done is called exactly once.
type SDK interface {
	CreateRegisterIntent(locale, email string) (Intent, error)
	CreateLoginIntent(locale, email string) (Intent, error)
	Launch(ctx context.Context, intent Intent, done func(Response))
}

// Backend is the authentication backend the dispatcher drives. Each call is
// attempted at most once per user action.
type Backend interface {
	Register(ctx context.Context, displayName, email string, result FlowResult) (*Session, error)
	Login(ctx context.Context, result FlowResult) (*Session, error)
	LoginAndLink(ctx context.Context, email, password string, result FlowResult) (*Session, error)
}

// Presenter is the host UI surface a [Client] reports to.
type Presenter interface {
	ShowMessage(outcome Outcome)
	ShowInputError(message string)
	SetState(state UIState)
}

// NoOpPresenter discards everything.
type NoOpPresenter struct{}

func (NoOpPresenter) ShowMessage(Outcome)   {}
func (NoOpPresenter) ShowInputError(string) {}
func (NoOpPresenter) SetState(UIState)      {}
