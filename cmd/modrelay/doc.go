// Package main hosts the modrelay CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the relay daemon, queries its HTTP API
// for status, lets moderators review submissions directly against the
// store, and scaffolds configuration. Configuration resolution and output
// rendering live here so subcommands stay small.
//
// Add new functionality to the internal packages first, then surface it
// through a command here.
package main
