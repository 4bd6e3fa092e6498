package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/growthfarm/internal/buildinfo"
	"github.com/dmitrijs2005/growthfarm/internal/client/client"
	"github.com/dmitrijs2005/growthfarm/internal/client/config"
	"github.com/dmitrijs2005/growthfarm/internal/client/navigation"
	"github.com/dmitrijs2005/growthfarm/internal/client/session"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
	"github.com/dmitrijs2005/growthfarm/internal/telemetry"
)

type App struct {
	session *session.Manager
	reader  *bufio.Reader
	out     io.Writer
	log     logging.Logger

	mu     sync.Mutex
	screen navigation.Destination

	cleanup []func(context.Context) error
}

// NewApp builds the client from configuration: tracing, the store, the auth
// API client and the session manager.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	tp, shutdownTracing, err := telemetry.Setup(ctx, c.OTelEndpoint, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	store, err := OpenStore(ctx, c)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	api := client.NewHTTPClient(c.APIBaseURL, client.WithTimeout(c.RequestTimeout), client.WithLogger(log))

	scope, err := session.ParseRecoveryScope(c.RecoveryScope)
	if err != nil {
		_ = store.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	mgr, err := session.NewManager(session.Options{
		Store:          store,
		API:            api,
		Logger:         log,
		StoreTimeout:   c.StoreTimeout,
		RecoveryScope:  scope,
		TracerProvider: tp,
	})
	if err != nil {
		_ = store.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	a := newApp(mgr, os.Stdin, os.Stdout, log)
	a.cleanup = []func(context.Context) error{
		func(context.Context) error { return api.Close() },
		func(context.Context) error { return store.Close() },
		shutdownTracing,
	}
	return a, nil
}

func newApp(mgr *session.Manager, in io.Reader, out io.Writer, log logging.Logger) *App {
	return &App{
		session: mgr,
		reader:  bufio.NewReader(in),
		out:     &syncWriter{w: out},
		log:     log,
	}
}

// Run settles the session, runs the REPL until the user exits or input ends,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ch, unsubscribe := a.session.Subscribe()
	binder := navigation.NewBinder(ch, a.log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := binder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn(ctx, "navigation stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		for intent := range binder.Intents() {
			a.navigate(intent)
		}
	}()

	a.println("Welcome to GrowthFarm (type 'help' for commands)")
	if _, err := a.session.Start(ctx); err != nil {
		a.log.Error(ctx, "session start failed", "error", err)
	}

	runREPL(ctx, a, a.status, a.reader, a.out)

	// Shutdown must finish even after an interrupt.
	cctx := context.WithoutCancel(ctx)

	// Close drains the subscription, which stops the binder.
	err := a.session.Close(cctx)
	wg.Wait()
	unsubscribe()

	for _, fn := range a.cleanup {
		err = errors.Join(err, fn(cctx))
	}
	return err
}

func (a *App) navigate(intent navigation.Intent) {
	a.mu.Lock()
	a.screen = intent.Destination
	a.mu.Unlock()

	switch {
	case intent.Destination == navigation.Welcome && intent.Reset:
		a.println("[welcome] Your session was reset. Please sign in again.")
	case intent.Destination == navigation.Welcome:
		a.println("[welcome] Sign in, sign up, or continue as guest.")
	case intent.Guest:
		a.println("[workspace] Browsing as guest. Sign in to save your farm.")
	default:
		a.println("[workspace] Your farm is ready.")
	}
}

func (a *App) currentScreen() navigation.Destination {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

func (a *App) isLoggedIn() bool {
	return a.session.Current().IsAuthenticated()
}

// status is shown in the prompt.
func (a *App) status() string {
	st := a.session.Current()
	switch st.Kind {
	case session.KindAuthenticated:
		if name := st.User.DisplayName(); name != "" {
			return "(" + name + ")"
		}
		return "(signed in)"
	case session.KindGuest:
		return "(guest)"
	default:
		return ""
	}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// syncWriter lets the REPL and the navigation printer share one writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
