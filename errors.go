package sessionkit

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailNotConfirmed marks the login sub-case where the account exists
	// but its email address was never confirmed. It is always joined with
	// [ErrInvalidCredentials] so callers can surface both notifications.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrSignupFailed is returned when the backend rejects a signup.
	ErrSignupFailed = errors.New("signup failed")
	// ErrBackendUnreachable is returned on connectivity failures, as opposed
	// to application-level rejections. Its detail names the configured
	// backend endpoint to aid local debugging.
	ErrBackendUnreachable = errors.New("verification backend unreachable")
	// ErrOperationInFlight is returned when a second auth mutator is invoked
	// while another is still running. At most one of Login, Signup, or
	// Logout may be in flight per tab.
	ErrOperationInFlight = errors.New("auth operation already in flight")
	// ErrStoreClosed is returned by operations on a closed session store.
	ErrStoreClosed = errors.New("session store closed")
)

// Backend error codes carried in the structured "code" field of rejection
// bodies. Older backend builds omit the field; detection then falls back to
// matching the human-readable detail text.
const (
	codeEmailNotConfirmed = "email_not_confirmed"

	detailEmailNotConfirmed = "Email not confirmed"
)

// BackendError is an application-level rejection from the backend. It wraps
// the matching sentinel (use errors.Is) and carries the backend-provided
// detail for display.
type BackendError struct {
	// Status is the HTTP status code of the rejection.
	Status int
	// Code is the structured error code, empty when the backend omits it.
	Code string
	// Detail is the backend-provided human-readable message, or a generic
	// fallback when the body carried none.
	Detail string

	err error
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.err
}

// UnreachableError is a connectivity failure reaching the backend. It wraps
// [ErrBackendUnreachable] and names the endpoint that could not be reached.
type UnreachableError struct {
	// Endpoint is the configured backend base URL.
	Endpoint string

	cause error
}

func (e *UnreachableError) Error() string {
	return "cannot reach verification backend at " + e.Endpoint + ": " + e.cause.Error()
}

func (e *UnreachableError) Unwrap() error {
	return ErrBackendUnreachable
}

// Cause returns the underlying transport error.
func (e *UnreachableError) Cause() error {
	return e.cause
}
