// Package logging configures slog output for housekeeper.
//
// Two handlers are provided: a human-oriented console handler that prefixes
// messages with their component attribute, and a JSON handler with stable
// ts/level/msg keys for file output. New builds a logger over any mix of
// process streams and files, and CleanupOldLogs applies age-based retention
// to the log directory.
package logging
