// Package models defines the client-side data shapes shared by the remote
// auth client and the session machine.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserProfile is the cached profile of the signed-in user.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// wireProfile accepts both backend flavours: snake_case full_name/phone and
// the camelCase firstName/lastName/phoneNumber variant, with a numeric or
// string id.
type wireProfile struct {
	ID          json.RawMessage `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	FullName    string          `json:"full_name"`
	FullNameAlt string          `json:"fullName"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Phone       string          `json:"phone"`
	PhoneNumber string          `json:"phoneNumber"`
	Role        string          `json:"role"`
}

func (u *UserProfile) UnmarshalJSON(b []byte) error {
	var w wireProfile
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id, err := parseID(w.ID)
	if err != nil {
		return err
	}

	p := UserProfile{
		ID:       id,
		Username: w.Username,
		Email:    w.Email,
		FullName: firstNonEmpty(w.FullName, w.FullNameAlt, strings.TrimSpace(w.FirstName+" "+w.LastName)),
		Phone:    firstNonEmpty(w.Phone, w.PhoneNumber),
		Role:     w.Role,
	}
	*u = p
	return nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("user id %s is not an integer", n)
	}
	return n.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Credentials are what the user types on the sign-in screen.
type Credentials struct {
	Username   string
	Password   string
	RememberMe bool
}

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	RememberMe bool   `json:"-"`
}

// AuthResult is a successful login or registration: a credential plus the
// profile it belongs to.
type AuthResult struct {
	Token string
	User  UserProfile
}
