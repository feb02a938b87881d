package sessionkit

import (
	"context"
	"encoding/json"
	"io"

	internalaudit "github.com/verinews/sessionkit/internal/audit"
)

// User is the authenticated identity record as returned by the verification
// backend. A session holds either a fully populated User or none at all;
// sessionkit never constructs a partial identity.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Credentials carries a login request. It is transient: it exists only for
// the duration of a single [SessionStore.Login] call and is never persisted.
type Credentials struct {
	Email    string
	Password string
}

// SignupData carries an account creation request. Like [Credentials] it is
// never persisted.
type SignupData struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignupResult is returned by [SessionStore.Signup]. User is nil when the
// backend created an account that is pending email confirmation rather than
// an active session. Session is the backend's session payload, passed
// through byte-for-byte — sessionkit never interprets it.
type SignupResult struct {
	User    *User
	Session json.RawMessage
}

// Gateway translates the four authentication intents into calls against the
// external backend. [HTTPGateway] is the production implementation; tests
// may substitute their own.
//
// Login, Signup (with an active user), and Logout couple the persisted
// record write to their return: when they return, the record and the
// returned value agree, so a caller assigning the result into its session
// never observes a half-updated state.
type Gateway interface {
	// Login exchanges credentials for the authenticated user. The backend is
	// the sole authority on credential correctness.
	Login(ctx context.Context, creds Credentials) (*User, error)

	// Signup creates an account. The returned SignupResult carries a nil
	// User when the account is pending confirmation.
	Signup(ctx context.Context, data SignupData) (SignupResult, error)

	// Logout notifies the backend on a best-effort basis and always clears
	// the persisted record. A backend failure is not an error.
	Logout(ctx context.Context) error

	// CurrentUser restores the persisted record and re-validates it against
	// the backend, re-persisting the freshened copy. It returns (nil, nil)
	// when nothing is persisted, when the payload is unparseable, or when
	// the backend no longer recognizes the identity.
	CurrentUser(ctx context.Context) (*User, error)
}

// Snapshot is a point-in-time copy of a tab's session state, delivered to
// subscribers on every change.
type Snapshot struct {
	User          *User
	Loading       bool
	Authenticated bool
}

// AuditEvent is a structured audit record emitted by the session store.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the store's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
