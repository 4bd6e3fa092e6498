package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/growthfarm/internal/client/client"
	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
)

const (
	DefaultStoreTimeout = 5 * time.Second
	tracerName          = "github.com/dmitrijs2005/growthfarm/internal/client/session"
)

// RecoveryScope selects what a forced logout wipes.
type RecoveryScope string

const (
	// RecoveryAll clears the whole store.
	RecoveryAll RecoveryScope = "all"
	// RecoverySession removes only the session keys.
	RecoverySession RecoveryScope = "session"
)

// ParseRecoveryScope reads a scope from config. Empty means RecoveryAll.
func ParseRecoveryScope(s string) (RecoveryScope, error) {
	switch RecoveryScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", RecoveryAll:
		return RecoveryAll, nil
	case RecoverySession:
		return RecoverySession, nil
	default:
		return "", fmt.Errorf("unknown recovery scope %q", s)
	}
}

// Options configures a Manager. Store and API are required.
type Options struct {
	Store  kv.Store
	API    client.Client
	Logger logging.Logger

	// StoreTimeout bounds every store call. Zero means DefaultStoreTimeout.
	StoreTimeout   time.Duration
	RecoveryScope  RecoveryScope
	TracerProvider trace.TracerProvider
}

// Manager is the single owner of the session state and the only writer of
// the session keys.
type Manager struct {
	store        kv.Store
	api          client.Client
	log          logging.Logger
	tracer       trace.Tracer
	storeTimeout time.Duration
	scope        RecoveryScope

	// mu is held for the whole of a transition, I/O included.
	mu    sync.Mutex
	group singleflight.Group

	// epoch is bumped by every sign-out so sign-ins that started earlier
	// give up instead of resurrecting the session.
	epoch atomic.Uint64

	// stateMu guards the fields below and orders publishes with Subscribe.
	stateMu    sync.RWMutex
	state      State
	rememberMe bool
	started    bool
	closed     bool

	subs *broadcaster
}

// NewManager returns a manager in Loading. Nothing is read until Start.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.API == nil {
		return nil, errors.New("session: api client is required")
	}

	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	scope := opts.RecoveryScope
	if scope == "" {
		scope = RecoveryAll
	}

	return &Manager{
		store:        opts.Store,
		api:          opts.API,
		log:          log.With("component", "session"),
		tracer:       tp.Tracer(tracerName),
		storeTimeout: timeout,
		scope:        scope,
		state:        Loading(),
		subs:         newBroadcaster(),
	}, nil
}

// Current returns the in-memory state.
func (m *Manager) Current() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Subscribe returns an ordered stream of transitions. If the manager has
// settled, the first value replays the current state with Initial set. The
// returned func unsubscribes; the channel is also closed by Close.
func (m *Manager) Subscribe() (<-chan Transition, func()) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	var initial *Transition
	if m.state.IsSettled() {
		initial = &Transition{From: m.state, To: m.state, Cause: CauseStartup, Navigate: true, Initial: true}
	}
	return m.subs.subscribe(initial)
}

// Start reads the persisted session and settles the manager. Corrupt or
// unreadable data is wiped and the manager settles in Unauthenticated; that
// is not reported as an error.
func (m *Manager) Start(ctx context.Context) (st State, err error) {
	ctx, span := m.startSpan(ctx, "Start")
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.Lock()
	switch {
	case m.closed:
		err = ErrClosed
	case m.started:
		err = ErrAlreadyStarted
	}
	if err != nil {
		st = m.state
		m.stateMu.Unlock()
		return st, err
	}
	m.started = true
	m.stateMu.Unlock()

	rec, readErr := m.readRecord(ctx)
	if reason := ConflictReason(rec, readErr); reason != "" {
		m.log.Warn(ctx, "persisted session rejected, resetting", "reason", reason, "error", readErr)
		return m.forceLogoutLocked(ctx, CauseConflict), nil
	}

	switch {
	case rec.HasToken:
		if rec.User == nil {
			m.log.Warn(ctx, "token without cached profile, continuing signed in")
		}
		st = Authenticated(rec.Token, rec.User)
	case rec.GuestMode:
		st = Guest()
	default:
		st = Unauthenticated()
	}

	m.setState(st, CauseStartup, true, false, rec.RememberMe)
	m.log.Info(ctx, "session settled", "state", st.Kind)
	return st, nil
}

// Login exchanges credentials for a session. From Guest it upgrades the
// guest to a signed-in user.
func (m *Manager) Login(ctx context.Context, cred models.Credentials) (State, error) {
	return m.authenticate(ctx, "Login", CauseLogin, cred.RememberMe, func(ctx context.Context) (*models.AuthResult, error) {
		return m.api.Login(ctx, cred.Username, cred.Password)
	})
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (State, error) {
	return m.authenticate(ctx, "Register", CauseRegister, req.RememberMe, func(ctx context.Context) (*models.AuthResult, error) {
		return m.api.Register(ctx, req)
	})
}

func (m *Manager) authenticate(
	ctx context.Context,
	op string,
	cause Cause,
	remember bool,
	call func(context.Context) (*models.AuthResult, error),
) (st State, err error) {
	epoch := m.epoch.Load()

	ctx, span := m.startSpan(ctx, op)
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	if err := m.ready(); err != nil {
		return from, err
	}
	if from.IsAuthenticated() {
		return from, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, cause, from.Kind)
	}
	if m.epoch.Load() != epoch {
		return from, ErrSessionReset
	}

	res, err := call(ctx)
	if err != nil {
		if client.IsAuthFailure(err) {
			return from, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return from, fmt.Errorf("%s: %w", cause, err)
	}
	if res.Token == "" || res.Token == InvalidTokenMarker {
		return from, fmt.Errorf("%w: server returned an unusable token", ErrInvalidCredentials)
	}
	user := res.User
	encoded, err := EncodeUser(&user)
	if err != nil {
		return from, fmt.Errorf("%s: %w", cause, err)
	}

	if m.epoch.Load() != epoch {
		return from, ErrSessionReset
	}

	set := map[string]string{KeyToken: res.Token, KeyUser: encoded}
	remove := []string{KeyGuestMode}
	if remember {
		set[KeyRememberMe] = "true"
	} else {
		remove = append(remove, KeyRememberMe)
	}

	if err := m.persistCredential(ctx, set, remove); err != nil {
		m.log.Error(ctx, "failed to persist session", "cause", cause, "error", err)
		m.rollbackCredential(ctx)
		return from, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	st = Authenticated(res.Token, &user)
	m.setState(st, cause, true, false, remember)
	m.log.Info(ctx, "signed in", "cause", cause, "user", user.Username)
	return st, nil
}

func (m *Manager) persistCredential(ctx context.Context, set map[string]string, remove []string) error {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.store.Update(sctx, set, remove)
}

// rollbackCredential undoes a credential write whose outcome is unknown. The
// write may have committed even though it reported a failure (a reply lost to
// the deadline), so it gets its own deadline.
func (m *Manager) rollbackCredential(ctx context.Context) {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.RemoveAll(sctx, []string{KeyToken, KeyUser, KeyRememberMe}); err != nil {
		m.log.Warn(ctx, "failed to roll back partial session", "error", err)
	}
}

// LoginAsGuest enters guest mode. Persistence is best effort: a leftover
// token is caught by the conflict rules on the next Start. Concurrent calls
// share one result.
func (m *Manager) LoginAsGuest(ctx context.Context) (State, error) {
	v, err, _ := m.group.Do("guest", func() (any, error) {
		return m.loginAsGuest(ctx)
	})
	return v.(State), err
}

func (m *Manager) loginAsGuest(ctx context.Context) (st State, err error) {
	ctx, span := m.startSpan(ctx, "LoginAsGuest")
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	if err := m.ready(); err != nil {
		return from, err
	}
	switch from.Kind {
	case KindGuest:
		return from, nil
	case KindAuthenticated:
		return from, fmt.Errorf("%w: guest while %s", ErrInvalidTransition, from.Kind)
	}

	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.Set(sctx, KeyGuestMode, "true"); err != nil {
		m.log.Warn(ctx, "failed to persist guest mode", "error", err)
	}
	if err := m.store.RemoveAll(sctx, []string{KeyToken, KeyUser, KeyRememberMe}); err != nil {
		m.log.Warn(ctx, "failed to remove credentials for guest mode", "error", err)
	}

	st = Guest()
	m.setState(st, CauseGuest, true, false, false)
	return st, nil
}

// Logout signs out. It always ends Unauthenticated; remote and store
// failures are logged. navigate=false tells subscribers the caller handles
// navigation itself.
func (m *Manager) Logout(ctx context.Context, navigate bool) (State, error) {
	m.epoch.Add(1)
	v, err, _ := m.group.Do("logout:"+strconv.FormatBool(navigate), func() (any, error) {
		return m.logout(ctx, navigate)
	})
	return v.(State), err
}

func (m *Manager) logout(ctx context.Context, navigate bool) (st State, err error) {
	ctx, span := m.startSpan(ctx, "Logout")
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	if err := m.ready(); err != nil {
		return from, err
	}

	if from.Token != "" {
		if err := m.api.Logout(ctx, from.Token); err != nil {
			m.log.Warn(ctx, "remote logout failed", "error", err)
		}
	}

	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.RemoveAll(sctx, SessionKeys); err != nil {
		m.log.Error(ctx, "failed to remove session keys on logout", "error", err)
	}

	st = Unauthenticated()
	m.setState(st, CauseLogout, navigate, false, false)
	return st, nil
}

// Refresh re-fetches the profile of the signed-in user. A rejected token
// resets the session. Other remote failures leave the state unchanged.
func (m *Manager) Refresh(ctx context.Context) (st State, err error) {
	ctx, span := m.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	if err := m.ready(); err != nil {
		return from, err
	}
	if !from.IsAuthenticated() {
		return from, nil
	}

	user, err := m.api.Me(ctx, from.Token)
	if err != nil {
		if client.IsAuthFailure(err) {
			m.log.Warn(ctx, "token rejected on refresh, resetting", "error", err)
			return m.forceLogoutLocked(ctx, CauseInvalidToken), nil
		}
		return from, fmt.Errorf("refresh: %w", err)
	}

	encoded, err := EncodeUser(user)
	if err != nil {
		return from, fmt.Errorf("refresh: %w", err)
	}
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.Set(sctx, KeyUser, encoded); err != nil {
		m.log.Warn(ctx, "failed to cache refreshed profile", "error", err)
	}

	st = Authenticated(from.Token, user)
	m.setState(st, CauseRefresh, true, false, m.remembered())
	return st, nil
}

// HandleAuthError resets the session when err says the current credential
// is no longer accepted. A refusal of some earlier token is ignored. It
// reports whether the session was reset.
func (m *Manager) HandleAuthError(ctx context.Context, err error) bool {
	if err == nil || !m.revokes(err) {
		return false
	}
	m.log.Warn(ctx, "credential rejected by server", "error", err)
	m.epoch.Add(1)
	v, _, _ := m.group.Do("force", func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.revokes(err) {
			return false, nil
		}
		m.forceLogoutLocked(ctx, CauseInvalidToken)
		return true, nil
	})
	return v.(bool)
}

func (m *Manager) revokes(err error) bool {
	cur := m.Current()
	return cur.IsAuthenticated() && client.RevokesToken(err, cur.Token)
}

// Verify re-reads the persisted session and resets it if it can no longer
// be trusted, or if the stored token no longer matches the signed-in one. It
// never signs anybody in.
func (m *Manager) Verify(ctx context.Context) (st State, err error) {
	ctx, span := m.startSpan(ctx, "Verify")
	defer func() { endSpan(span, st, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.Current()
	if err := m.ready(); err != nil {
		return from, err
	}

	rec, readErr := m.readRecord(ctx)
	if reason := ConflictReason(rec, readErr); reason != "" {
		m.log.Warn(ctx, "persisted session rejected, resetting", "reason", reason, "error", readErr)
		return m.forceLogoutLocked(ctx, CauseConflict), nil
	}
	if from.IsAuthenticated() && (!rec.HasToken || rec.Token != from.Token) {
		m.log.Warn(ctx, "stored token no longer matches session, resetting")
		return m.forceLogoutLocked(ctx, CauseConflict), nil
	}
	return from, nil
}

// DebugInfo reports which session keys are stored, never their values.
func (m *Manager) DebugInfo(ctx context.Context) string {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", m.Current().Kind)

	values, err := m.store.List(sctx)
	if err != nil {
		fmt.Fprintf(&b, "store: unreadable (%v)\n", err)
		return b.String()
	}
	for _, key := range SessionKeys {
		v, ok := values[key]
		switch {
		case !ok:
			fmt.Fprintf(&b, "%s: none\n", key)
		case key == KeyGuestMode || key == KeyRememberMe:
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		default:
			fmt.Fprintf(&b, "%s: exists\n", key)
		}
	}
	fmt.Fprintf(&b, "other keys: %d\n", len(values)-countPresent(values, SessionKeys))
	return b.String()
}

func countPresent(values map[string]string, keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := values[k]; ok {
			n++
		}
	}
	return n
}

// Close ends the manager. A signed-in session that was not remembered is
// removed from the store. Subscribers receive what is queued and then see
// their channel closed. The store itself is left open.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stateMu.Lock()
	if m.closed {
		m.stateMu.Unlock()
		return nil
	}
	m.closed = true
	st, remember := m.state, m.rememberMe
	m.stateMu.Unlock()

	var err error
	if st.IsAuthenticated() && !remember {
		sctx, cancel := m.storeContext(ctx)
		defer cancel()
		if rmErr := m.store.RemoveAll(sctx, SessionKeys); rmErr != nil {
			err = fmt.Errorf("remove unremembered session: %w", rmErr)
		}
	}
	m.subs.close()
	return err
}

func (m *Manager) ready() error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	switch {
	case m.closed:
		return ErrClosed
	case !m.started || !m.state.IsSettled():
		return ErrNotStarted
	}
	return nil
}

func (m *Manager) remembered() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.rememberMe
}

// setState flips the in-memory state and notifies subscribers. Nothing is
// published when the identity is unchanged and no reset was requested.
func (m *Manager) setState(to State, cause Cause, navigate, reset, remember bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	from := m.state
	m.state = to
	m.rememberMe = remember
	if !reset && from.Identity() == to.Identity() {
		return
	}
	m.subs.publish(Transition{From: from, To: to, Cause: cause, Navigate: navigate, Reset: reset})
}

// storeContext detaches store calls from caller cancellation so a transition
// that started writing finishes. The store timeout still applies.
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.storeTimeout)
}

func (m *Manager) readRecord(ctx context.Context) (Record, error) {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	return ReadRecord(sctx, m.store)
}

func (m *Manager) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "session."+op,
		trace.WithAttributes(attribute.String("session.from", m.Current().Kind.String())))
}

func endSpan(span trace.Span, to State, err error) {
	span.SetAttributes(attribute.String("session.to", to.Kind.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
