package internaldefs

import (
	ownid "github.com/ownid/ownid-go"
)

// Def names one exported metric.
type Def struct {
	ID   ownid.MetricID
	Name string
	Help string
}

// AuditDropped names the counter for audit events lost to backpressure.
var AuditDropped = Def{
	Name: "ownid_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

var Counters = []Def{
	{ID: ownid.MetricRegisterSuccess, Name: "ownid_register_success_total", Help: "Register flows that created an account."},
	{ID: ownid.MetricRegisterFailure, Name: "ownid_register_failure_total", Help: "Register flows the backend rejected."},
	{ID: ownid.MetricLoginSuccess, Name: "ownid_login_success_total", Help: "Login flows that signed a user in."},
	{ID: ownid.MetricLoginFailure, Name: "ownid_login_failure_total", Help: "Login flows the backend rejected."},
	{ID: ownid.MetricLinkFallback, Name: "ownid_link_fallback_total", Help: "Flows that fell back to login and link."},
	{ID: ownid.MetricLinkSuccess, Name: "ownid_link_success_total", Help: "Successful login and link calls."},
	{ID: ownid.MetricLinkFailure, Name: "ownid_link_failure_total", Help: "Failed login and link calls."},
	{ID: ownid.MetricFlowCancelled, Name: "ownid_flow_cancelled_total", Help: "Flows the user abandoned."},
	{ID: ownid.MetricFlowFailure, Name: "ownid_flow_failure_total", Help: "Flows that ended without a result."},
	{ID: ownid.MetricServerError, Name: "ownid_server_error_total", Help: "Server errors reported by the SDK or backend."},
	{ID: ownid.MetricEmailRejected, Name: "ownid_email_rejected_total", Help: "Start attempts rejected by email validation."},
}

var Histograms = []Def{
	{ID: ownid.MetricDispatchLatency, Name: "ownid_dispatch_latency_seconds", Help: "Time spent dispatching one flow response."},
}

// Bounds are the upper bounds of the latency buckets in seconds, in the
// order the snapshot stores them.
var Bounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// BoundSuffix renders Bounds as instrument-name suffixes.
func BoundSuffix(i int) string {
	if Bounds[i] == "+Inf" {
		return "inf"
	}
	out := []byte(Bounds[i])
	for j := range out {
		if out[j] == '.' {
			out[j] = '_'
		}
	}
	return string(out)
}

// Cumulative converts raw per-bucket counts into running totals. Missing
// buckets count as zero.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
