// Package main hosts the housekeeper CLI entrypoint and command graph.
//
// The Cobra-based command tree covers daemon lifecycle management through
// the platform service controller, foreground watching, configuration
// editing, and ledger inspection. Configuration resolution happens once per
// invocation and is shared across subcommands.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
