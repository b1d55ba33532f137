package ownid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ownid/ownid-go/internal/audit"
)

// Client is the host side of a passwordless integration: it validates input,
// launches flows through the [SDK] and reports dispatched outcomes to a
// [Presenter].
//
// The SDK callback runs on its own goroutine, so Client guards identity and
// UI state with a mutex. At most one flow is in flight at a time.
type Client struct {
	cfg        Config
	sdk        SDK
	dispatcher *Dispatcher
	presenter  Presenter
	onCancel   func(error)
	audit      *audit.Dispatcher
	metrics    *Metrics
	log        *slog.Logger

	mu       sync.Mutex
	identity Identity
	state    UIState
	inFlight bool
	done     chan struct{}
	last     Outcome
	lastErr  error
}

// StartRegister validates email and launches a register flow for it.
//
// Validation failures are shown through Presenter.ShowInputError and returned;
// no flow is launched. The outcome arrives asynchronously; see [Client.Await].
func (c *Client) StartRegister(ctx context.Context, email string) error {
	return c.start(ctx, PurposeRegister, email)
}

// StartLogin validates email and launches a login flow for it.
func (c *Client) StartLogin(ctx context.Context, email string) error {
	return c.start(ctx, PurposeLogin, email)
}

func (c *Client) start(ctx context.Context, purpose Purpose, email string) error {
	if c == nil || c.sdk == nil || c.dispatcher == nil {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ValidateEmail(email); err != nil {
		c.metrics.Inc(MetricEmailRejected)
		c.dispatcher.emitAudit(ctx, AuditEmailRejected, purpose, email, nil, err)
		c.presenter.ShowInputError(err.Error())
		return err
	}
	c.presenter.ShowInputError("")

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrFlowInProgress
	}
	c.identity.Email = email
	if c.identity.DisplayName == "" {
		c.identity.DisplayName = c.cfg.Flow.DisplayName
	}
	c.inFlight = true
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	var (
		intent Intent
		err    error
	)
	if purpose == PurposeRegister {
		intent, err = c.sdk.CreateRegisterIntent(c.cfg.Flow.Locale, email)
	} else {
		intent, err = c.sdk.CreateLoginIntent(c.cfg.Flow.Locale, email)
	}
	if err != nil {
		c.finish(done, Outcome{}, err)
		return fmt.Errorf("create %s intent: %w", purpose, err)
	}

	c.log.Debug("launching flow", "purpose", purpose, "intent", intent.ID, "locale", intent.Locale)
	var once sync.Once
	c.sdk.Launch(ctx, intent, func(resp Response) {
		// The SDK promises a single callback; a second one is ignored.
		once.Do(func() { c.onResponse(ctx, done, resp) })
	})
	return nil
}

func (c *Client) onResponse(ctx context.Context, done chan struct{}, resp Response) {
	c.mu.Lock()
	id := c.identity
	c.mu.Unlock()

	outcome, err := c.dispatcher.Handle(ctx, resp, id)
	switch {
	case err == nil:
		c.presenter.ShowMessage(outcome)
		if outcome.State != StateUnchanged {
			c.mu.Lock()
			c.state = outcome.State
			c.mu.Unlock()
			c.presenter.SetState(outcome.State)
		}
	case IsCancelled(err):
		if c.onCancel != nil {
			c.onCancel(err)
		}
	default:
		c.log.Error("dispatch failed", "error", err)
	}

	c.finish(done, outcome, err)
}

func (c *Client) finish(done chan struct{}, outcome Outcome, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return
	}
	select {
	case <-done:
		return
	default:
	}
	c.last = outcome
	c.lastErr = err
	c.inFlight = false
	close(done)
}

// Await blocks until the most recently started flow has been dispatched and
// returns its outcome. A cancelled flow returns the cancellation error.
func (c *Client) Await(ctx context.Context) (Outcome, error) {
	if c == nil {
		return Outcome{}, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return Outcome{}, ErrNoFlow
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.Flow.AwaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Flow.AwaitTimeout)
		defer cancel()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.lastErr
}

// SetIdentity replaces the identity used by subsequent flows. The email is
// overwritten by the next Start call.
func (c *Client) SetIdentity(id Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// Identity returns the current identity.
func (c *Client) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// State returns the current host UI state.
func (c *Client) State() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight reports whether a flow is waiting for its callback.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Dispatcher returns the dispatcher the client routes responses through.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// MetricsSnapshot returns a copy of the client's metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped for backpressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// AuditDroppedByOutcome returns dropped audit events keyed by outcome: a
// failure kind such as "serverError", or "success".
func (c *Client) AuditDroppedByOutcome() map[string]uint64 {
	if c == nil {
		return map[string]uint64{}
	}
	return c.audit.DroppedByOutcome()
}

// Close flushes and stops the audit dispatcher.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
	if n := c.audit.Dropped(); n > 0 {
		c.log.Warn("audit events dropped", "total", n, "by_outcome", c.audit.DroppedByOutcome())
	}
}
