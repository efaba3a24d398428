// Package preflight provides readiness checks for the services and
// filesystem paths modrelay depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check
//     before it starts the relay.
//   - The CLI "modrelay doctor" command renders the same results as a table.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
