package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Guest(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Refresh(ctx context.Context) error
	Verify(ctx context.Context) error
	Reset(ctx context.Context) error
	QuickLogout(ctx context.Context) error
	Debug(ctx context.Context) error
}

// runREPL reads commands from in until EOF or "exit"/"quit" and dispatches
// them to a.
//
//	Signed out or guest:
//	  - login: sign in with username and password
//	  - register: create an account and sign in
//	  - guest: continue without an account
//
//	Signed in:
//	  - refresh: reload your profile from the server
//	  - verify: re-check the saved session
//
//	Always:
//	  - status: show the current session
//	  - logout: sign out
//	  - quick-logout: forget the credential, keep other data
//	  - reset: wipe local data and start over
//	  - debug: show which session keys are saved
//	  - help, exit | quit
//
// Command errors are reported by the handlers themselves; the loop keeps
// going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "growthfarm %s> ", statusFn())
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: status, refresh, verify, logout, quick-logout, reset, debug, exit")
			} else {
				fmt.Fprintln(out, "Available commands: login, register, guest, status, logout, reset, debug, exit")
			}
		case "login":
			_ = a.Login(ctx)
		case "register":
			_ = a.Register(ctx)
		case "guest":
			_ = a.Guest(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "status":
			_ = a.Status(ctx)
		case "refresh":
			_ = a.Refresh(ctx)
		case "verify":
			_ = a.Verify(ctx)
		case "reset":
			_ = a.Reset(ctx)
		case "quick-logout":
			_ = a.QuickLogout(ctx)
		case "debug":
			_ = a.Debug(ctx)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
