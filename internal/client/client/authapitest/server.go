// Package authapitest runs an in-process fake of the GrowthFarm auth API for
// tests and local development. It issues HS256 JWTs and checks them on the
// authenticated endpoints, so tokens behave like the real backend's: opaque
// to the client, verifiable only by the server.
package authapitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathMe       = "/api/auth/me"
	PathLogout   = "/api/auth/logout"
)

type account struct {
	password string
	profile  models.UserProfile
}

// Server is the fake backend. The zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	secret []byte
	ttl    time.Duration

	mu      sync.Mutex
	nextID  int
	users   map[string]account
	revoked map[string]bool
	failing map[string]int
	gates   map[string]*Gate
	calls   map[string]int
	lastReq map[string]*http.Request
}

// NewServer starts a fake API listening on a loopback port.
func NewServer() *Server {
	s := &Server{
		secret:  []byte(uuid.NewString()),
		ttl:     24 * time.Hour,
		nextID:  1,
		users:   make(map[string]account),
		revoked: make(map[string]bool),
		failing: make(map[string]int),
		gates:   make(map[string]*Gate),
		calls:   make(map[string]int),
		lastReq: make(map[string]*http.Request),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathLogin, s.handleLogin)
	mux.HandleFunc("POST "+PathRegister, s.handleRegister)
	mux.HandleFunc("GET "+PathMe, s.handleMe)
	mux.HandleFunc("POST "+PathLogout, s.handleLogout)
	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// AddUser registers an account directly and returns its profile.
func (s *Server) AddUser(username, password string) models.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(models.RegisterRequest{Username: username, Password: password, Email: username + "@growthfarm.test"})
}

func (s *Server) addUserLocked(req models.RegisterRequest) models.UserProfile {
	p := models.UserProfile{
		ID:       strconv.Itoa(s.nextID),
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     "farmer",
	}
	s.nextID++
	s.users[req.Username] = account{password: req.Password, profile: p}
	return p
}

// FailNext makes the next request to path answer with status.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = status
}

// Revoke makes the server reject token from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Calls reports how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastRequest returns the most recent request to path (body already consumed).
func (s *Server) LastRequest(path string) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq[path]
}

// Gate holds requests to one path until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed when the first held request arrives.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets every held request proceed.
func (g *Gate) Release() { close(g.release) }

// Hold installs a gate on path. Requests block until Release is called.
func (s *Server) Hold(path string) *Gate {
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[path] = g
	return g
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.lastReq[r.URL.Path] = r
		status, fail := s.failing[r.URL.Path]
		delete(s.failing, r.URL.Path)
		g := s.gates[r.URL.Path]
		s.mu.Unlock()

		if g != nil {
			g.once.Do(func() { close(g.entered) })
			select {
			case <-g.release:
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeJSON(w, status, map[string]any{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "malformed body"})
		return
	}

	s.mu.Lock()
	acc, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || acc.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
		return
	}
	s.issue(w, acc.profile, "Login successful")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "malformed body"})
		return
	}
	if len(req.Username) < 3 || len(req.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "username or password too short"})
		return
	}

	s.mu.Lock()
	if _, taken := s.users[req.Username]; taken {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]any{"detail": "Username already registered"})
		return
	}
	p := s.addUserLocked(req)
	s.mu.Unlock()

	s.issue(w, p, "User registered successfully")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	username, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid token"})
		return
	}
	s.mu.Lock()
	acc, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, acc.profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	username, err := s.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid or expired token"})
		return
	}
	s.Revoke(bearer(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User %s logged out successfully. Token invalidated.", username),
	})
}

func (s *Server) issue(w http.ResponseWriter, p models.UserProfile, msg string) {
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   p.Username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}).SignedString(s.secret)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
		"token":   tok,
		"user":    p,
	})
}

var errNoToken = errors.New("no bearer token")

func (s *Server) authenticate(r *http.Request) (string, error) {
	raw := bearer(r)
	if raw == "" {
		return "", errNoToken
	}
	s.mu.Lock()
	revoked := s.revoked[raw]
	s.mu.Unlock()
	if revoked {
		return "", errors.New("token revoked")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
