package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/growthfarm/internal/client/client"
	"github.com/dmitrijs2005/growthfarm/internal/client/client/authapitest"
	"github.com/dmitrijs2005/growthfarm/internal/client/config"
	"github.com/dmitrijs2005/growthfarm/internal/client/navigation"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
	"github.com/dmitrijs2005/growthfarm/internal/client/session"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
)

type harness struct {
	app    *App
	out    *bytes.Buffer
	store  *kv.MemoryRepository
	server *authapitest.Server
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func newHarness(t *testing.T, store *kv.MemoryRepository, script ...string) *harness {
	t.Helper()
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("farmer", "harvest1")

	if store == nil {
		store = kv.NewMemoryRepository()
	}
	mgr, err := session.NewManager(session.Options{
		Store: store,
		API:   client.NewHTTPClient(srv.URL, client.WithHTTPClient(srv.Client()), client.WithTimeout(2*time.Second)),
	})
	require.NoError(t, err)

	var out bytes.Buffer
	input := strings.Join(script, "\n") + "\n"
	app := newApp(mgr, strings.NewReader(input), &out, logging.Discard())
	return &harness{app: app, out: &out, store: store, server: srv}
}

func (h *harness) run(t *testing.T) string {
	t.Helper()
	require.NoError(t, h.app.Run(context.Background()))
	return h.out.String()
}

func TestApp_LoginAndLogout(t *testing.T) {
	stubPassword(t, "harvest1")
	h := newHarness(t, nil,
		"login", "farmer", "y",
		"status",
		"logout", "y",
		"exit",
	)
	out := h.run(t)

	assert.Contains(t, out, "Sign out? This clears your session data on this device. [y/N]")
	assert.Contains(t, out, "[welcome] Sign in, sign up, or continue as guest.")
	assert.Contains(t, out, "[workspace] Your farm is ready.")
	assert.Contains(t, out, "Session: authenticated")
	assert.Contains(t, out, "Email: farmer@growthfarm.test")
	assert.Equal(t, 1, h.server.Calls(authapitest.PathLogout))
	assert.Equal(t, navigation.Welcome, h.app.currentScreen())

	values, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestApp_RememberedSessionSurvivesRestart(t *testing.T) {
	stubPassword(t, "harvest1")
	store := kv.NewMemoryRepository()

	first := newHarness(t, store, "login", "farmer", "yes", "exit")
	first.run(t)

	second := newHarness(t, store, "status", "exit")
	out := second.run(t)
	assert.Contains(t, out, "Session: authenticated")
	assert.Contains(t, out, "growthfarm (farmer)> ")
	assert.Equal(t, navigation.Workspace, second.app.currentScreen())
}

func TestApp_UnrememberedSessionIsDroppedOnExit(t *testing.T) {
	stubPassword(t, "harvest1")
	store := kv.NewMemoryRepository()

	newHarness(t, store, "login", "farmer", "n", "exit").run(t)

	values, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestApp_WrongPassword(t *testing.T) {
	stubPassword(t, "wrong")
	h := newHarness(t, nil, "login", "farmer", "n", "status", "exit")
	out := h.run(t)

	assert.Contains(t, out, "Invalid username or password.")
	assert.Contains(t, out, "Session: unauthenticated")
}

func TestApp_ServerDown(t *testing.T) {
	stubPassword(t, "harvest1")
	h := newHarness(t, nil, "login", "farmer", "n", "exit")
	h.server.FailNext(authapitest.PathLogin, http.StatusServiceUnavailable)

	assert.Contains(t, h.run(t), "The server is unavailable, try again later.")
}

func TestApp_RegisterDuplicate(t *testing.T) {
	stubPassword(t, "seedling")
	h := newHarness(t, nil,
		"register", "farmer", "farmer@x.test", "", "n",
		"exit",
	)
	out := h.run(t)
	assert.Contains(t, out, "Username already registered")
	assert.NotContains(t, out, "[workspace]")
	assert.Equal(t, session.KindUnauthenticated, h.app.session.Current().Kind)
	assert.Equal(t, 1, h.server.Calls(authapitest.PathRegister))
}

func TestApp_LogoutNeedsConfirmation(t *testing.T) {
	stubPassword(t, "harvest1")
	h := newHarness(t, nil,
		"login", "farmer", "y",
		"logout", "n",
		"status",
		"exit",
	)
	out := h.run(t)

	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "Session: authenticated")
	assert.Zero(t, h.server.Calls(authapitest.PathLogout))
	assert.Equal(t, navigation.Workspace, h.app.currentScreen())
}

func TestApp_GuestExitsDemo(t *testing.T) {
	h := newHarness(t, nil, "guest", "logout", "yes", "status", "exit")
	out := h.run(t)

	assert.Contains(t, out, "Exit demo mode? [y/N]")
	assert.NotContains(t, out, "Sign out?")
	assert.Contains(t, out, "Session: unauthenticated")
	assert.Equal(t, navigation.Welcome, h.app.currentScreen())
}

func TestApp_GuestThenReset(t *testing.T) {
	store := kv.NewMemoryRepository()
	require.NoError(t, store.Set(context.Background(), "farm.layout", "north"))

	h := newHarness(t, store, "guest", "status", "reset", "debug", "exit")
	out := h.run(t)

	assert.Contains(t, out, "[workspace] Browsing as guest.")
	assert.Contains(t, out, "Session: guest")
	assert.Contains(t, out, "growthfarm (guest)> ")
	assert.Contains(t, out, "[welcome] Your session was reset.")
	assert.Contains(t, out, "guestMode: none")
	assert.Contains(t, out, "other keys: 0")
}

func TestApp_ExpiredTokenOnRefresh(t *testing.T) {
	store := kv.NewMemoryRepository()
	require.NoError(t, store.Update(context.Background(), map[string]string{
		session.KeyToken:      "stale-token",
		session.KeyUser:       `{"id":"1","username":"farmer"}`,
		session.KeyRememberMe: "true",
	}, nil))

	h := newHarness(t, store, "refresh", "status", "exit")
	out := h.run(t)

	assert.Contains(t, out, "[workspace] Your farm is ready.")
	assert.Contains(t, out, "[welcome] Your session was reset.")
	assert.Contains(t, out, "Session: unauthenticated")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	c := &config.Config{StoreDriver: config.DriverMemory}
	s, err := OpenStore(ctx, c)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c = &config.Config{StoreDriver: config.DriverSQLite, StorePath: t.TempDir() + "/client.db"}
	s, err = OpenStore(ctx, c)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, &config.Config{StoreDriver: "bolt"})
	assert.Error(t, err)
}

func TestSyncWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &syncWriter{w: &buf}
	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString("hello")
	require.NoError(t, bw.Flush())
	assert.Equal(t, "hello", buf.String())
}
