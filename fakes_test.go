package ownid

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ownid/ownid-go/internal/logger"
)

func discardLogger() *slog.Logger {
	return logger.Discard()
}

type backendCall struct {
	method      string
	displayName string
	email       string
	password    string
	result      FlowResult
}

// fakeBackend records every call and answers with the configured errors.
type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall

	registerErr error
	loginErr    error
	linkErr     error
}

func (b *fakeBackend) record(c backendCall) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	b.mu.Unlock()
}

func (b *fakeBackend) Register(_ context.Context, displayName, email string, result FlowResult) (*Session, error) {
	b.record(backendCall{method: "register", displayName: displayName, email: email, result: result})
	if b.registerErr != nil {
		return nil, b.registerErr
	}
	return &Session{UserID: "u-register", Email: email, DisplayName: displayName}, nil
}

func (b *fakeBackend) Login(_ context.Context, result FlowResult) (*Session, error) {
	b.record(backendCall{method: "login", result: result})
	if b.loginErr != nil {
		return nil, b.loginErr
	}
	return &Session{UserID: "u-login"}, nil
}

func (b *fakeBackend) LoginAndLink(_ context.Context, email, password string, result FlowResult) (*Session, error) {
	b.record(backendCall{method: "loginAndLink", email: email, password: password, result: result})
	if b.linkErr != nil {
		return nil, b.linkErr
	}
	return &Session{UserID: "u-link", Email: email}, nil
}

func (b *fakeBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

func (b *fakeBackend) methods() []string {
	var out []string
	for _, c := range b.Calls() {
		out = append(out, c.method)
	}
	return out
}

// fakeSDK answers every launch with resp, asynchronously unless sync is set.
type fakeSDK struct {
	mu        sync.Mutex
	resp      Response
	sync      bool
	hold      chan struct{}
	double    bool
	intentErr error
	launches  []Intent
}

func (s *fakeSDK) CreateRegisterIntent(locale, email string) (Intent, error) {
	if s.intentErr != nil {
		return Intent{}, s.intentErr
	}
	return Intent{ID: "intent-register", Purpose: PurposeRegister, Locale: locale, Email: email}, nil
}

func (s *fakeSDK) CreateLoginIntent(locale, email string) (Intent, error) {
	if s.intentErr != nil {
		return Intent{}, s.intentErr
	}
	return Intent{ID: "intent-login", Purpose: PurposeLogin, Locale: locale, Email: email}, nil
}

func (s *fakeSDK) Launch(_ context.Context, intent Intent, done func(Response)) {
	s.mu.Lock()
	s.launches = append(s.launches, intent)
	resp, hold := s.resp, s.hold
	s.mu.Unlock()

	deliver := func() {
		if hold != nil {
			<-hold
		}
		done(resp)
		if s.double {
			done(resp)
		}
	}
	if s.sync {
		deliver()
		return
	}
	go deliver()
}

func (s *fakeSDK) Launches() []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Intent(nil), s.launches...)
}

type recordingPresenter struct {
	mu          sync.Mutex
	messages    []Outcome
	inputErrors []string
	states      []UIState
}

func (p *recordingPresenter) ShowMessage(o Outcome) {
	p.mu.Lock()
	p.messages = append(p.messages, o)
	p.mu.Unlock()
}

func (p *recordingPresenter) ShowInputError(msg string) {
	p.mu.Lock()
	p.inputErrors = append(p.inputErrors, msg)
	p.mu.Unlock()
}

func (p *recordingPresenter) SetState(s UIState) {
	p.mu.Lock()
	p.states = append(p.states, s)
	p.mu.Unlock()
}

func (p *recordingPresenter) snapshot() ([]Outcome, []string, []UIState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Outcome(nil), p.messages...),
		append([]string(nil), p.inputErrors...),
		append([]UIState(nil), p.states...)
}

func okResponse(purpose Purpose) Response {
	return Response{
		ResultCode: ResultOK,
		Result:     &FlowResult{Purpose: purpose, Nonce: "nonce-1", Data: "payload-1", Email: "a@b.com"},
	}
}
