package internaldefs

import (
	sessionkit "github.com/verinews/sessionkit"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs maps every counter to its exposition name.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricLoginSuccess, Name: "sessionkit_login_success_total", Help: "Successful login attempts."},
	{ID: sessionkit.MetricLoginFailure, Name: "sessionkit_login_failure_total", Help: "Failed login attempts."},
	{ID: sessionkit.MetricSignupSuccess, Name: "sessionkit_signup_success_total", Help: "Signups that produced an active session."},
	{ID: sessionkit.MetricSignupPending, Name: "sessionkit_signup_pending_total", Help: "Signups left pending email confirmation."},
	{ID: sessionkit.MetricSignupFailure, Name: "sessionkit_signup_failure_total", Help: "Failed signup attempts."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "Logout operations."},
	{ID: sessionkit.MetricRestoreSuccess, Name: "sessionkit_restore_success_total", Help: "Restore passes that produced a user."},
	{ID: sessionkit.MetricRestoreFailure, Name: "sessionkit_restore_failure_total", Help: "Restore passes that degraded to logged out."},
	{ID: sessionkit.MetricBackendUnreachable, Name: "sessionkit_backend_unreachable_total", Help: "Connectivity failures reaching the backend."},
	{ID: sessionkit.MetricExternalSync, Name: "sessionkit_external_sync_total", Help: "Record changes applied from other tabs."},
	{ID: sessionkit.MetricExternalParseFailure, Name: "sessionkit_external_parse_failure_total", Help: "Unparseable cross-tab record payloads."},
}

// HistogramDefs maps every histogram to its exposition name.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricGatewayLatency, Name: "sessionkit_gateway_latency_seconds", Help: "Gateway round-trip latency histogram."},
}

// HistogramBounds are the upper bounds of the fixed buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is the metric-name-safe form of each bound.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw bucket data to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative form.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
