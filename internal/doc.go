// Package internal contains helper packages that are intentionally private
// to sessionkit.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - metrics — lock-free counters and latency histograms
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionkit API.
//   - Be imported by any package outside the sessionkit module.
package internal
