// Package daemon coordinates the long-running modrelay process.
//
// It wires configuration, submission storage, the notification relay, and
// the Telegram intake poller into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon also owns periodic
// maintenance (change log and log file retention, submission gauges) and
// serves the moderator HTTP API.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
