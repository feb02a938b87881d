// Package record provides durable storage for the persisted session record
// and the change notifications that keep tabs in sync.
//
// # Model
//
// There is exactly one record per installation: an opaque payload (the
// JSON-serialized user) under a single key. Absence of the record means
// logged out. Each open [Store] handle represents one tab; a handle's own
// writes never echo back through its [Store.Watch] channel — only
// externally-originated changes do.
//
// # Architecture boundaries
//
// This package owns persistence and change signaling. It treats the payload
// as opaque bytes and does NOT parse users, call the backend, or decide
// session policy — those responsibilities belong to sessionkit.
//
// # What this package must NOT do
//
//   - Import sessionkit (no upward imports).
//   - Interpret or validate record payloads.
//   - Deliver a handle's own writes back to that handle.
package record
