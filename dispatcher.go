package ownid

import (
	"context"
	"log/slog"
	"time"

	"github.com/ownid/ownid-go/internal/audit"
	"github.com/ownid/ownid-go/internal/logger"
)

// Dispatcher routes a completed flow to the backend call matching its
// purpose and turns the backend's answer into an [Outcome].
//
// A Dispatcher holds no per-flow state and is safe for concurrent use.
type Dispatcher struct {
	backend Backend
	metrics *Metrics
	audit   *audit.Dispatcher
	log     *slog.Logger
}

// NewDispatcher creates a dispatcher over backend with metrics and audit
// disabled. Use [Builder] for a fully wired client.
func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		metrics: NewMetrics(MetricsConfig{}),
		log:     logger.Component("ownid"),
	}
}

// Handle dispatches one flow response for id.
//
// A cancelled flow, or a backend call that reports cancellation, is returned
// as the error with a zero Outcome and nothing to show. Every other result,
// success or failure, is returned as an Outcome with a nil error.
func (d *Dispatcher) Handle(ctx context.Context, resp Response, id Identity) (Outcome, error) {
	if d == nil || d.backend == nil {
		return Outcome{}, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	defer func() {
		d.metrics.Observe(MetricDispatchLatency, time.Since(start))
	}()

	if resp.Err != nil || resp.Result == nil {
		return d.handleFailure(ctx, resp, id)
	}

	result := *resp.Result
	d.log.Debug("flow result", "purpose", result.Purpose, "nonce", result.Nonce, "data", result.Data)

	switch result.Purpose {
	case PurposeRegister:
		return d.register(ctx, result, id)
	case PurposeLogin:
		return d.login(ctx, result, id)
	default:
		d.log.Error("flow result has unknown purpose", "purpose", result.Purpose)
		d.emitAudit(ctx, AuditUnknownPurpose, result.Purpose, id.Email, nil, ErrUnknownPurpose)
		return failed(ErrUnknownPurpose, StateUnchanged), nil
	}
}

func (d *Dispatcher) handleFailure(ctx context.Context, resp Response, id Identity) (Outcome, error) {
	err := resp.Err
	if err == nil {
		// A result code without payload is how an abandoned flow looks.
		if resp.ResultCode == ResultCanceled {
			err = ErrCancelled
		} else {
			err = NewFlowFailure(KindServerError, "flow returned no result", nil)
		}
	}

	if IsCancelled(err) {
		return d.cancelled(ctx, "", id, err)
	}

	d.metrics.Inc(MetricFlowFailure)
	d.log.Error("flow failed", "kind", KindOf(err), "error", err)
	d.emitAudit(ctx, AuditFlowFailure, "", id.Email, nil, err)

	// A server error leaves the flow unusable; the host starts over.
	state := StateUnchanged
	if KindOf(err) == KindServerError {
		d.metrics.Inc(MetricServerError)
		state = StateInitial
	}
	return failed(err, state), nil
}

func (d *Dispatcher) register(ctx context.Context, result FlowResult, id Identity) (Outcome, error) {
	sess, err := d.backend.Register(ctx, id.DisplayName, id.Email, result)
	if err == nil {
		d.metrics.Inc(MetricRegisterSuccess)
		d.emitAudit(ctx, AuditRegister, result.Purpose, id.Email, sess, nil)
		return Outcome{
			Kind:    OutcomeRegistered,
			Message: MessageRegistered,
			State:   StateLoginReady,
			Session: sess,
		}, nil
	}

	switch KindOf(err) {
	case KindCancelled:
		return d.cancelled(ctx, result.Purpose, id, err)
	case KindEmailAndPasswordRequired:
		d.log.Debug("email and password required, linking", "purpose", result.Purpose)
		return d.loginAndLink(ctx, result, id)
	}
	d.log.Error("register failed", "kind", KindOf(err), "error", err)
	d.metrics.Inc(MetricRegisterFailure)
	d.countServerError(err)
	d.emitAudit(ctx, AuditRegister, result.Purpose, id.Email, nil, err)
	return failed(err, StateUnchanged), nil
}

func (d *Dispatcher) login(ctx context.Context, result FlowResult, id Identity) (Outcome, error) {
	sess, err := d.backend.Login(ctx, result)
	if err == nil {
		d.metrics.Inc(MetricLoginSuccess)
		d.emitAudit(ctx, AuditLogin, result.Purpose, id.Email, sess, nil)
		return Outcome{
			Kind:    OutcomeLoggedIn,
			Message: MessageLoggedIn,
			State:   StateUnchanged,
			Session: sess,
		}, nil
	}

	switch KindOf(err) {
	case KindCancelled:
		return d.cancelled(ctx, result.Purpose, id, err)
	case KindEmailAndPasswordRequired:
		d.log.Debug("email and password required, linking", "purpose", result.Purpose)
		return d.loginAndLink(ctx, result, id)
	}
	d.log.Error("login failed", "kind", KindOf(err), "error", err)
	d.metrics.Inc(MetricLoginFailure)
	d.countServerError(err)
	d.emitAudit(ctx, AuditLogin, result.Purpose, id.Email, nil, err)
	return failed(err, StateUnchanged), nil
}

// loginAndLink is the single fallback for emailAndPasswordRequired. It reuses
// the result that triggered it and is never retried.
func (d *Dispatcher) loginAndLink(ctx context.Context, result FlowResult, id Identity) (Outcome, error) {
	d.metrics.Inc(MetricLinkFallback)

	sess, err := d.backend.LoginAndLink(ctx, id.Email, id.Password, result)
	if err == nil {
		d.metrics.Inc(MetricLinkSuccess)
		d.log.Debug("linked passwordless credential", "email", id.Email)
		d.emitAudit(ctx, AuditLoginAndLink, result.Purpose, id.Email, sess, nil)
		return Outcome{
			Kind:    OutcomeLinked,
			Message: MessageLinked,
			State:   StateUnchanged,
			Session: sess,
		}, nil
	}

	if IsCancelled(err) {
		return d.cancelled(ctx, result.Purpose, id, err)
	}

	d.metrics.Inc(MetricLinkFailure)
	d.countServerError(err)
	d.log.Error("login and link failed", "kind", KindOf(err), "error", err)
	d.emitAudit(ctx, AuditLoginAndLink, result.Purpose, id.Email, nil, err)
	return failed(err, StateUnchanged), nil
}

func (d *Dispatcher) cancelled(ctx context.Context, purpose Purpose, id Identity, err error) (Outcome, error) {
	d.metrics.Inc(MetricFlowCancelled)
	d.log.Debug("flow cancelled", "purpose", purpose)
	d.emitAudit(ctx, AuditFlowCancelled, purpose, id.Email, nil, err)
	return Outcome{}, err
}

func (d *Dispatcher) countServerError(err error) {
	if KindOf(err) == KindServerError {
		d.metrics.Inc(MetricServerError)
	}
}

func failed(err error, state UIState) Outcome {
	return Outcome{
		Kind:    OutcomeFailed,
		Message: messageOf(err),
		State:   state,
	}
}
