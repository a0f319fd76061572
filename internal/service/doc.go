// Package service installs, starts, stops, and inspects the daemon as a
// background service. On Windows it registers with the service control
// manager; elsewhere it launches a detached process guarded by a pid
// record, optionally wiring an autostart artifact (systemd user unit or
// launchd agent) so the daemon survives logout.
package service
