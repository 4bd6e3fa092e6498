// Package navigation turns session transitions into screen changes.
//
// The Binder is the only place that decides where the user goes after the
// session changes. Screens never navigate on sign-in or sign-out themselves.
package navigation

import (
	"context"

	"github.com/dmitrijs2005/growthfarm/internal/client/session"
	"github.com/dmitrijs2005/growthfarm/internal/logging"
)

// Destination is a top-level screen.
type Destination int

const (
	// Welcome is the unauthenticated landing screen.
	Welcome Destination = iota + 1
	// Workspace is the main app, for signed-in users and guests.
	Workspace
)

func (d Destination) String() string {
	switch d {
	case Welcome:
		return "welcome"
	case Workspace:
		return "workspace"
	default:
		return "unknown"
	}
}

// Intent asks the UI to replace its stack with Destination.
type Intent struct {
	Destination Destination
	Guest       bool
	Reset       bool
	Cause       session.Cause
}

// IntentFor maps a settled state to where the user belongs. It reports false
// for Loading.
func IntentFor(st session.State) (Intent, bool) {
	switch st.Kind {
	case session.KindAuthenticated:
		return Intent{Destination: Workspace}, true
	case session.KindGuest:
		return Intent{Destination: Workspace, Guest: true}, true
	case session.KindUnauthenticated:
		return Intent{Destination: Welcome}, true
	default:
		return Intent{}, false
	}
}

// Binder turns session transitions into navigation intents, dropping
// repeats of the screen the user is already on.
type Binder struct {
	source  <-chan session.Transition
	intents chan Intent
	log     logging.Logger

	lastKey string
}

// NewBinder reads from source, normally a Manager subscription. Call Run to
// start pumping.
func NewBinder(source <-chan session.Transition, log logging.Logger) *Binder {
	if log == nil {
		log = logging.Discard()
	}
	return &Binder{
		source:  source,
		intents: make(chan Intent),
		log:     log.With("component", "navigation"),
	}
}

// Intents is closed when Run returns.
func (b *Binder) Intents() <-chan Intent { return b.intents }

// Run consumes transitions until the source closes (nil error) or ctx ends.
func (b *Binder) Run(ctx context.Context) error {
	defer close(b.intents)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-b.source:
			if !ok {
				return nil
			}
			intent, fire := b.decide(tr)
			if !fire {
				continue
			}
			b.log.Debug(ctx, "navigate", "to", intent.Destination, "guest", intent.Guest, "reset", intent.Reset, "cause", tr.Cause)
			select {
			case b.intents <- intent:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decide applies the debounce: one intent per distinct session identity,
// except that a reset always fires and Navigate=false never does.
func (b *Binder) decide(tr session.Transition) (Intent, bool) {
	intent, ok := IntentFor(tr.To)
	if !ok {
		return Intent{}, false
	}

	key := tr.To.Identity()
	if !tr.Reset && key == b.lastKey {
		return Intent{}, false
	}
	b.lastKey = key

	if !tr.Navigate && !tr.Reset {
		return Intent{}, false
	}
	intent.Reset = tr.Reset
	intent.Cause = tr.Cause
	return intent, true
}
