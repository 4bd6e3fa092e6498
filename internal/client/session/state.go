package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
)

// Kind is the coarse session state.
type Kind int

const (
	KindLoading Kind = iota
	KindAuthenticated
	KindGuest
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindAuthenticated:
		return "authenticated"
	case KindGuest:
		return "guest"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the session. Token and User are only set
// for KindAuthenticated; User may be nil when the profile write was lost.
type State struct {
	Kind  Kind
	Token string
	User  *models.UserProfile
}

// Loading is the state before Start has read the store.
func Loading() State { return State{Kind: KindLoading} }

// Guest is a signed-out session that may use the app without an account.
func Guest() State { return State{Kind: KindGuest} }

// Unauthenticated is the signed-out state every failure resolves to.
func Unauthenticated() State { return State{Kind: KindUnauthenticated} }

// Authenticated is a signed-in session holding token. user may be nil.
func Authenticated(token string, user *models.UserProfile) State {
	return State{Kind: KindAuthenticated, Token: token, User: user}
}

func (s State) IsAuthenticated() bool { return s.Kind == KindAuthenticated }
func (s State) IsGuest() bool         { return s.Kind == KindGuest }
func (s State) IsSettled() bool       { return s.Kind != KindLoading }

// Identity distinguishes logically different sessions. Two Authenticated
// states with the same token are the same session even if the cached profile
// changed. The token itself never appears in the result.
func (s State) Identity() string {
	if s.Kind != KindAuthenticated {
		return s.Kind.String()
	}
	sum := sha256.Sum256([]byte(s.Token))
	return s.Kind.String() + ":" + hex.EncodeToString(sum[:8])
}

func (s State) String() string {
	if s.Kind == KindAuthenticated && s.User != nil {
		return s.Kind.String() + "(" + s.User.Username + ")"
	}
	return s.Kind.String()
}

// Cause says what triggered a transition.
type Cause string

const (
	CauseStartup      Cause = "startup"
	CauseLogin        Cause = "login"
	CauseRegister     Cause = "register"
	CauseGuest        Cause = "guest"
	CauseLogout       Cause = "logout"
	CauseForceLogout  Cause = "force_logout"
	CauseQuickLogout  Cause = "quick_logout"
	CauseConflict     Cause = "conflict"
	CauseInvalidToken Cause = "invalid_token"
	CauseRefresh      Cause = "refresh"
)

// Transition is delivered to subscribers after the state changed.
//
// Navigate=false asks consumers not to move the user (the caller navigates
// itself). Reset asks for a navigation reset even if the state identity did
// not change. Initial marks the replay of the current state that every new
// subscriber receives first.
type Transition struct {
	From     State
	To       State
	Cause    Cause
	Navigate bool
	Reset    bool
	Initial  bool
}
