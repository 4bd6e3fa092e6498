package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/growthfarm/internal/client/client/authapitest"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv/kvtest"
)

func TestForceLogout_ClearsStore(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{"farm.layout": "north"})
	m := f.started(t)
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	nextTransition(t, ch)

	st := m.ForceLogout(context.Background())
	assert.Equal(t, KindUnauthenticated, st.Kind)
	assert.Empty(t, f.stored(t))

	tr := nextTransition(t, ch)
	assert.True(t, tr.Reset)
	assert.True(t, tr.Navigate)
	assert.Equal(t, CauseForceLogout, tr.Cause)
}

func TestForceLogout_SessionScope(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{"farm.layout": "north"})
	m := f.started(t, func(o *Options) { o.RecoveryScope = RecoverySession })
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	m.ForceLogout(context.Background())
	assert.Equal(t, map[string]string{"farm.layout": "north"}, f.stored(t))
	assert.NotContains(t, f.store.Ops(), kvtest.OpClear)
}

func TestForceLogout_Twice(t *testing.T) {
	f := newFixture(t)
	m := f.started(t)
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	nextTransition(t, ch)

	assert.Equal(t, KindUnauthenticated, m.ForceLogout(context.Background()).Kind)
	assert.Equal(t, KindUnauthenticated, m.ForceLogout(context.Background()).Kind)
	assert.Empty(t, f.sessionKeysLeft(t))

	// Each reset re-requests navigation even though the state is unchanged.
	assert.True(t, nextTransition(t, ch).Reset)
	second := nextTransition(t, ch)
	assert.True(t, second.Reset)
	assert.Equal(t, KindUnauthenticated, second.From.Kind)
}

func TestForceLogout_DuringLogin(t *testing.T) {
	f := newFixture(t)
	m := f.started(t)
	gate := f.server.Hold(authapitest.PathLogin)

	var (
		wg       sync.WaitGroup
		loginErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, loginErr = m.Login(context.Background(), farmerLogin())
	}()
	<-gate.Entered()

	epoch := m.epoch.Load()
	go func() {
		defer wg.Done()
		m.ForceLogout(context.Background())
	}()
	require.Eventually(t, func() bool { return m.epoch.Load() != epoch }, time.Second, time.Millisecond)
	gate.Release()
	wg.Wait()

	assert.ErrorIs(t, loginErr, ErrSessionReset)
	assert.Equal(t, KindUnauthenticated, m.Current().Kind)
	assert.Empty(t, f.sessionKeysLeft(t))
}

func TestForceLogout_LoginWriteAlreadyDone(t *testing.T) {
	f := newFixture(t)
	m := f.started(t)

	reset := make(chan State, 1)
	f.store.After(kvtest.OpUpdate, func() {
		// The credential is on disk; a reset requested now must still win.
		go func() { reset <- m.ForceLogout(context.Background()) }()
	})

	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	assert.Equal(t, KindUnauthenticated, (<-reset).Kind)
	assert.Equal(t, KindUnauthenticated, m.Current().Kind)
	assert.Empty(t, f.sessionKeysLeft(t))
}

func TestForceLogout_ClearFailsFallsBackToSessionKeys(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{"farm.layout": "north"})
	m := f.started(t)
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)
	f.store.FailOn(kvtest.OpClear, nil)

	st := m.ForceLogout(context.Background())
	assert.Equal(t, KindUnauthenticated, st.Kind)
	ops := f.store.Ops()
	assert.Equal(t, []kvtest.Op{kvtest.OpClear, kvtest.OpRemoveAll}, ops[len(ops)-2:])
	assert.Empty(t, f.sessionKeysLeft(t))
	assert.Contains(t, f.stored(t), "farm.layout")
}

func TestForceLogout_StoreUnusable(t *testing.T) {
	f := newFixture(t)
	m := f.started(t)
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	nextTransition(t, ch)

	f.store.FailOn(kvtest.OpClear, nil)
	f.store.FailOn(kvtest.OpRemoveAll, nil)

	st := m.ForceLogout(context.Background())
	assert.Equal(t, KindUnauthenticated, st.Kind)
	assert.True(t, nextTransition(t, ch).Reset, "navigation reset is requested even when the wipe failed")
}

func TestForceLogout_BeforeStart(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{KeyToken: "abc"})
	m := f.manager(t)

	st := m.ForceLogout(context.Background())
	assert.Equal(t, KindUnauthenticated, st.Kind)
	assert.Empty(t, f.stored(t))

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, KindUnauthenticated, m.Current().Kind)
}

func TestQuickLogout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{"farm.layout": "north"})
	m := f.started(t)
	_, err := m.Login(context.Background(), farmerLogin())
	require.NoError(t, err)

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	nextTransition(t, ch)

	st := m.QuickLogout(context.Background())
	assert.Equal(t, KindUnauthenticated, st.Kind)
	assert.Equal(t, map[string]string{"farm.layout": "north", KeyRememberMe: "true"}, f.stored(t))
	assert.Zero(t, f.server.Calls(authapitest.PathLogout), "quick logout stays local")

	tr := nextTransition(t, ch)
	assert.False(t, tr.Navigate)
	assert.False(t, tr.Reset)
	assert.Equal(t, CauseQuickLogout, tr.Cause)

	assert.Equal(t, KindUnauthenticated, m.QuickLogout(context.Background()).Kind)
	noTransition(t, ch)
}

func TestQuickLogout_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, map[string]string{KeyGuestMode: "true"})
	m := f.started(t)
	f.store.FailOn(kvtest.OpRemoveAll, nil)

	assert.Equal(t, KindUnauthenticated, m.QuickLogout(context.Background()).Kind)
}
