package sessionkit

import (
	internalaudit "github.com/verinews/sessionkit/internal/audit"
)

// auditDispatcher is the buffered async relay between the session store and
// the caller-supplied sink.
type auditDispatcher = internalaudit.Dispatcher

// newAuditDispatcher returns nil when auditing is disabled; a nil dispatcher
// is safe to Emit on and does nothing.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
