package session

import "context"

// ForceLogout is the emergency reset. It wipes the store (or only the
// session keys, depending on the recovery scope), settles in Unauthenticated
// and always asks subscribers to reset navigation. It cannot fail: store
// errors are logged and a narrower removal is attempted.
//
// ForceLogout may be called in any state, including before Start, and
// repeated calls are harmless. Sign-ins already in flight are either
// finished before the reset runs or abandoned.
func (m *Manager) ForceLogout(ctx context.Context) State {
	m.epoch.Add(1)
	v, _, _ := m.group.Do("force", func() (any, error) {
		ctx, span := m.startSpan(ctx, "ForceLogout")
		m.mu.Lock()
		defer m.mu.Unlock()
		st := m.forceLogoutLocked(ctx, CauseForceLogout)
		endSpan(span, st, nil)
		return st, nil
	})
	return v.(State)
}

// QuickLogout drops the credential and guest flag without touching other
// data and without forcing navigation.
func (m *Manager) QuickLogout(ctx context.Context) State {
	m.epoch.Add(1)
	v, _, _ := m.group.Do("quick", func() (any, error) {
		ctx, span := m.startSpan(ctx, "QuickLogout")
		m.mu.Lock()
		defer m.mu.Unlock()

		sctx, cancel := m.storeContext(ctx)
		defer cancel()
		if err := m.store.RemoveAll(sctx, credentialKeys); err != nil {
			m.log.Error(ctx, "quick logout: failed to remove credentials", "error", err)
		}

		st := Unauthenticated()
		m.markStarted()
		m.setState(st, CauseQuickLogout, false, false, false)
		endSpan(span, st, nil)
		return st, nil
	})
	return v.(State)
}

// forceLogoutLocked requires m.mu.
func (m *Manager) forceLogoutLocked(ctx context.Context, cause Cause) State {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()

	var err error
	if m.scope == RecoverySession {
		err = m.store.RemoveAll(sctx, SessionKeys)
	} else {
		err = m.store.Clear(sctx)
	}
	if err != nil {
		m.log.Error(ctx, "force logout: failed to clear store", "scope", m.scope, "error", err)
		if rmErr := m.store.RemoveAll(sctx, SessionKeys); rmErr != nil {
			m.log.Error(ctx, "force logout: failed to remove session keys", "error", rmErr)
		}
	}

	st := Unauthenticated()
	m.markStarted()
	m.setState(st, cause, true, true, false)
	m.log.Info(ctx, "session reset", "cause", cause)
	return st
}

// markStarted settles a manager that was reset before Start ran; a later
// Start then reports ErrAlreadyStarted instead of re-reading.
func (m *Manager) markStarted() {
	m.stateMu.Lock()
	m.started = true
	m.stateMu.Unlock()
}
