package sessionkit

import (
	internalmetrics "github.com/verinews/sessionkit/internal/metrics"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts completed logins.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts logins rejected by the backend.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricSignupSuccess counts signups that produced an active session.
	MetricSignupSuccess = internalmetrics.MetricSignupSuccess
	// MetricSignupPending counts signups left pending email confirmation.
	MetricSignupPending = internalmetrics.MetricSignupPending
	// MetricSignupFailure counts signups rejected by the backend.
	MetricSignupFailure = internalmetrics.MetricSignupFailure
	// MetricLogout counts logout operations.
	MetricLogout = internalmetrics.MetricLogout
	// MetricRestoreSuccess counts restore-and-validate passes that produced a user.
	MetricRestoreSuccess = internalmetrics.MetricRestoreSuccess
	// MetricRestoreFailure counts restores that degraded to logged-out.
	MetricRestoreFailure = internalmetrics.MetricRestoreFailure
	// MetricBackendUnreachable counts connectivity failures reaching the backend.
	MetricBackendUnreachable = internalmetrics.MetricBackendUnreachable
	// MetricExternalSync counts record changes applied from other tabs.
	MetricExternalSync = internalmetrics.MetricExternalSync
	// MetricExternalParseFailure counts unparseable cross-tab payloads.
	MetricExternalParseFailure = internalmetrics.MetricExternalParseFailure
	// MetricGatewayLatency is the request latency histogram for gateway calls.
	MetricGatewayLatency = internalmetrics.MetricGatewayLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] store configured by cfg. When Enabled is
// false every operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
