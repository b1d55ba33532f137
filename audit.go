package ownid

import (
	"context"
	"io"
	"time"

	"github.com/ownid/ownid-go/internal/audit"
)

// AuditEvent describes one dispatch decision delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the client's background dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events on a channel returned by Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes newline-delimited JSON events.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditRegister       = "register"
	AuditLogin          = "login"
	AuditLoginAndLink   = "login_and_link"
	AuditFlowFailure    = "flow_failure"
	AuditFlowCancelled  = "flow_cancelled"
	AuditEmailRejected  = "email_rejected"
	AuditUnknownPurpose = "unknown_purpose"
)

func (d *Dispatcher) emitAudit(ctx context.Context, eventType string, purpose Purpose, email string, sess *Session, err error) {
	if d == nil || d.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Purpose:   string(purpose),
		Email:     email,
		Success:   err == nil,
	}
	if sess != nil {
		event.UserID = sess.UserID
	}
	if err != nil {
		event.Error = err.Error()
		event.Outcome = string(KindOf(err))
	}
	d.audit.Emit(ctx, event)
}
