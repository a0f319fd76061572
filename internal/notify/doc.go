// Package notify delivers housekeeping notifications through configurable
// backends: OS desktop notifications and ntfy push topics. Delivery is
// advisory; a transient failure is retried exactly once and a second failure
// is logged without ever reaching the daemon's fault path.
package notify
