package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/growthfarm/internal/client/client"
	"github.com/dmitrijs2005/growthfarm/internal/client/client/authapitest"
	"github.com/dmitrijs2005/growthfarm/internal/client/models"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv"
	"github.com/dmitrijs2005/growthfarm/internal/client/repositories/kv/kvtest"
)

// stubAPI is a client.Client whose answers are set per test.
type stubAPI struct {
	mu          sync.Mutex
	loginFn     func(ctx context.Context, username, password string) (*models.AuthResult, error)
	meFn        func(ctx context.Context, token string) (*models.UserProfile, error)
	logoutCalls int
}

func (s *stubAPI) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	if s.loginFn == nil {
		return &models.AuthResult{Token: "tok-" + username, User: models.UserProfile{ID: "1", Username: username}}, nil
	}
	return s.loginFn(ctx, username, password)
}

func (s *stubAPI) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok-" + req.Username, User: models.UserProfile{ID: "2", Username: req.Username, FullName: req.FullName}}, nil
}

func (s *stubAPI) Me(ctx context.Context, token string) (*models.UserProfile, error) {
	if s.meFn == nil {
		return nil, client.ErrUnavailable
	}
	return s.meFn(ctx, token)
}

func (s *stubAPI) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	return nil
}

func (s *stubAPI) Close() error { return nil }

type fixture struct {
	store  *kvtest.Faulty
	inner  *kv.MemoryRepository
	server *authapitest.Server
	api    client.Client
}

// newFixture wires a faulty memory store and a fake auth backend with one
// account, "farmer"/"harvest1".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("farmer", "harvest1")

	api := client.NewHTTPClient(srv.URL, client.WithHTTPClient(srv.Client()), client.WithTimeout(2*time.Second))
	t.Cleanup(func() { _ = api.Close() })

	inner := kv.NewMemoryRepository()
	return &fixture{store: kvtest.NewFaulty(inner), inner: inner, server: srv, api: api}
}

func (f *fixture) manager(t *testing.T, opts ...func(*Options)) *Manager {
	t.Helper()
	o := Options{Store: f.store, API: f.api, StoreTimeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	m, err := NewManager(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func (f *fixture) started(t *testing.T, opts ...func(*Options)) *Manager {
	t.Helper()
	m := f.manager(t, opts...)
	_, err := m.Start(context.Background())
	require.NoError(t, err)
	return m
}

func (f *fixture) seed(t *testing.T, values map[string]string) {
	t.Helper()
	require.NoError(t, f.inner.Update(context.Background(), values, nil))
}

func (f *fixture) stored(t *testing.T) map[string]string {
	t.Helper()
	values, err := f.inner.List(context.Background())
	require.NoError(t, err)
	return values
}

func (f *fixture) sessionKeysLeft(t *testing.T) []string {
	t.Helper()
	values := f.stored(t)
	var left []string
	for _, k := range SessionKeys {
		if _, ok := values[k]; ok {
			left = append(left, k)
		}
	}
	return left
}

func nextTransition(t *testing.T, ch <-chan Transition) Transition {
	t.Helper()
	select {
	case tr, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no transition delivered")
		return Transition{}
	}
}

func noTransition(t *testing.T, ch <-chan Transition) {
	t.Helper()
	select {
	case tr, ok := <-ch:
		if ok {
			t.Fatalf("unexpected transition %s -> %s (%s)", tr.From, tr.To, tr.Cause)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func farmerLogin() models.Credentials {
	return models.Credentials{Username: "farmer", Password: "harvest1", RememberMe: true}
}
