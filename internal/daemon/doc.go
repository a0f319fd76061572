// Package daemon supervises the long-lived housekeeping process: it takes
// the single-instance guard, opens one watch subscription per target, pumps
// their events into the dispatcher, and on shutdown stops intake before
// draining the queue within a bounded window.
package daemon
