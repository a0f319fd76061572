// Package watch turns raw OS filesystem notifications into debounced,
// ordered event streams, one subscription per watched target.
//
// Events for the same path inside one debounce window coalesce to at most
// one emitted event; the window is anchored at the first event and is not
// extended by later arrivals. Lost OS watches are re-established with
// bounded backoff, and any loss of fidelity (kernel overflow, full outbound
// buffer, re-established watch) surfaces as a single Resync event telling
// downstream to re-scan the target rather than trust continuity.
package watch
