// Package gatewaytest runs an in-memory double of the verification backend's
// auth routes for tests and examples.
//
// The server owns everything the real backend owns: account records,
// confirmation state, and session token minting. Tokens are signed JWTs so
// fixtures resemble production traffic, but clients are expected to treat
// them as opaque bytes.
//
// # What this package must NOT do
//
//   - Import sessionkit; the double stays usable from any client.
//   - Leak accounts between Server instances.
package gatewaytest
