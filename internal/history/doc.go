// Package history persists daemon runs, rule firings, and resync events
// to a SQLite database under the state directory. The dispatcher writes
// through the Recorder interface; the CLI reads back recent activity.
package history
