package sessionkit

import (
	"context"
	"time"
)

// Audit event types emitted by [SessionStore]. Every session transition has
// exactly one event type; consumers key on these strings.
const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventSignupSuccess        = "signup_success"
	auditEventSignupPending        = "signup_pending"
	auditEventSignupFailure        = "signup_failure"
	auditEventLogout               = "logout"
	auditEventRestoreSuccess       = "restore_success"
	auditEventRestoreFailure       = "restore_failure"
	auditEventExternalSync         = "external_sync"
	auditEventExternalParseFailure = "external_parse_failure"
)

// emitAudit builds and dispatches one audit event. The metadata closure runs
// only when auditing is enabled, so callers pay nothing when it is off.
func (s *SessionStore) emitAudit(ctx context.Context, eventType string, success bool, userID string, opErr error, metadata func() map[string]string) {
	if s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: requestIDFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	s.audit.Emit(ctx, event)
}
