// Package cli provides the interactive GrowthFarm command-line client.
//
// It wires configuration, the persistent key-value store, the auth API
// client and the session manager, then runs a REPL whose commands drive the
// session: sign in, sign up, continue as guest, sign out, and the recovery
// actions. Screen changes are printed by a navigation binder that follows
// the session, never by the commands themselves.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
