package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/growthfarm/internal/client/client"
	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/dmitrijs2005/growthfarm/internal/client/session"
)

// Indirections used to facilitate testing. They point to the interactive
// input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getYesNo      = GetYesNo
)

// Login prompts for credentials and signs in. Where to go next is decided by
// the navigation binder, not here.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	remember, err := getYesNo(a.reader, "Remember me on this device?", a.out)
	if err != nil {
		return err
	}

	_, err = a.session.Login(ctx, models.Credentials{
		Username:   username,
		Password:   string(password),
		RememberMe: remember,
	})
	return a.report(ctx, err)
}

// Register prompts for the sign-up form and creates the account.
func (a *App) Register(ctx context.Context) error {
	var req models.RegisterRequest
	var err error

	if req.Username, err = getSimpleText(a.reader, "Choose a username", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return err
	}
	if req.FullName, err = getSimpleText(a.reader, "Full name (optional)", a.out); err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)
	req.Password = string(password)

	if req.RememberMe, err = getYesNo(a.reader, "Remember me on this device?", a.out); err != nil {
		return err
	}

	_, err = a.session.Register(ctx, req)
	return a.report(ctx, err)
}

func (a *App) Guest(ctx context.Context) error {
	_, err := a.session.LoginAsGuest(ctx)
	return a.report(ctx, err)
}

// Logout asks for confirmation, worded for guests or users, then signs out.
func (a *App) Logout(ctx context.Context) error {
	st := a.session.Current()
	if st.IsSettled() && st.Kind != session.KindUnauthenticated {
		prompt := "Sign out? This clears your session data on this device."
		if st.IsGuest() {
			prompt = "Exit demo mode?"
		}
		ok, err := getYesNo(a.reader, prompt, a.out)
		if err != nil {
			return err
		}
		if !ok {
			a.println("Cancelled.")
			return nil
		}
	}
	_, err := a.session.Logout(ctx, true)
	return a.report(ctx, err)
}

// QuickLogout drops the credential without leaving the current screen.
func (a *App) QuickLogout(ctx context.Context) error {
	a.session.QuickLogout(ctx)
	a.println("Signed out. Local data was kept.")
	return nil
}

// Reset is the recovery action offered when the app looks stuck.
func (a *App) Reset(ctx context.Context) error {
	a.session.ForceLogout(ctx)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	st, err := a.session.Refresh(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	if st.IsAuthenticated() && st.User != nil {
		a.printProfile(st.User)
	}
	return nil
}

func (a *App) Verify(ctx context.Context) error {
	st, err := a.session.Verify(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	a.println("Session:", st.Kind)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.session.Current()
	a.println("Session:", st.Kind)
	if st.IsAuthenticated() {
		if st.User == nil {
			a.println("Profile not loaded yet, run 'refresh'.")
		} else {
			a.printProfile(st.User)
		}
	}
	return nil
}

func (a *App) Debug(ctx context.Context) error {
	_, err := a.out.Write([]byte(a.session.DebugInfo(ctx)))
	return err
}

func (a *App) printProfile(u *models.UserProfile) {
	a.println("User:", u.DisplayName())
	if u.Email != "" {
		a.println("Email:", u.Email)
	}
	if u.Role != "" {
		a.println("Role:", u.Role)
	}
}

// report turns session errors into messages for the user and returns err
// unchanged.
func (a *App) report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	a.log.Debug(ctx, "command failed", "error", err)

	var apiErr *client.APIError
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		a.println("Invalid username or password.")
	case errors.Is(err, client.ErrUnavailable):
		a.println("The server is unavailable, try again later.")
	case errors.As(err, &apiErr) && apiErr.Message != "":
		a.println(apiErr.Message)
	case errors.Is(err, session.ErrPersist):
		a.println("Could not save your session on this device. You are still signed out.")
	case errors.Is(err, session.ErrSessionReset):
		a.println("Your session was reset while signing in. Please try again.")
	case errors.Is(err, session.ErrInvalidTransition):
		a.println("Not available right now:", a.session.Current().Kind)
	default:
		a.println("Error:", err)
	}

	if a.session.HandleAuthError(ctx, err) {
		a.println("Your session has expired.")
	}
	return err
}
