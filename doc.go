// Package sessionkit is the client-side session and authentication state
// machine for the verinews verification platform. It talks to the external
// REST backend (login, signup, logout, session re-validation), holds the
// single authoritative in-memory identity for one logical tab, and keeps
// all tabs sharing a persisted session record consistent through change
// notifications.
//
// The backend is the sole authority on credentials, tokens, and identity.
// sessionkit never hashes a password, never parses a session token, and
// never derives trust locally — the persisted record is a cache that is
// re-validated against the backend on every restore.
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [SessionStore], [Builder],
// [Gateway], [Gate], [Config], and value types (Snapshot, SignupResult,
// MetricsSnapshot). Persistence lives in the record sub-package behind the
// [record.Store] interface; metric storage and audit dispatch live under
// internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Verify credentials or inspect session tokens locally.
//   - Persist credentials; they exist only for the duration of one request.
//   - Mutate a tab's session from another tab except through record change
//     notifications.
//   - Import any sub-package that re-imports sessionkit (no import cycles).
package sessionkit
