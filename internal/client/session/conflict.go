package session

// Conflict reasons reported by ConflictReason.
const (
	ReasonInvalidToken  = "invalid token marker"
	ReasonTokenAndGuest = "token and guest mode both set"
	ReasonReadFailed    = "session record unreadable"
	ReasonOrphanUser    = "user profile without token"
)

// ConflictReason returns why rec cannot be trusted, or "" if it can. Rules
// are checked in a fixed order and the first match wins.
func ConflictReason(rec Record, readErr error) string {
	switch {
	case rec.HasToken && rec.Token == InvalidTokenMarker:
		return ReasonInvalidToken
	case rec.HasToken && rec.GuestMode:
		return ReasonTokenAndGuest
	case readErr != nil:
		return ReasonReadFailed
	case rec.User != nil && !rec.HasToken:
		return ReasonOrphanUser
	default:
		return ""
	}
}

// MustForceLogout reports whether the persisted session must be wiped before
// the app may use it. It never grants access: a record it accepts can still
// end up signed out.
func MustForceLogout(rec Record, readErr error) bool {
	return ConflictReason(rec, readErr) != ""
}
