// Package cli provides the interactive cart command-line client.
//
// It wires configuration, local storage, the remote Cart API client and the
// cart services into a REPL. The cart works offline; once a token is stored
// (by the login command or by another process) a background watcher notices
// the identity and reconciles the local cart with the remote one.
//
// Commands:
//   - login / logout
//   - add, remove, qty, clear
//   - list, total
//   - sync
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
