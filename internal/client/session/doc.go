// Package session owns the client's sign-in lifecycle: whether the user is
// signed in, browsing as a guest, or signed out; how that is persisted and
// recovered across restarts; and how inconsistent persisted data is cleaned
// up.
//
// # State machine
//
// A Manager starts in Loading. Start reads the persisted Record, runs the
// conflict rules (MustForceLogout) and settles in Authenticated, Guest or
// Unauthenticated. Afterwards only the Manager's methods move it:
//
//	Unauthenticated --Login/Register--> Authenticated
//	Unauthenticated --LoginAsGuest----> Guest
//	Authenticated|Guest --Logout------> Unauthenticated
//	any --ForceLogout/QuickLogout-----> Unauthenticated
//
// Transitions run one at a time. Persisted writes happen before the
// in-memory flip, and the flip happens before subscribers are told, so a
// crash at any point leaves data the next Start can either trust or detect.
//
// # Failure policy
//
// Store failures never grant access. Sign-in fails if its write fails;
// sign-out always succeeds in memory; a read failure at start is treated as
// corruption and resolved by a full reset.
package session
