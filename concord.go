// Package concord provides a high-level façade over the negotiation engine
// and its stores. Most applications interact with this package by:
//  1. Creating a Concord via New() with a capability set (optionally
//     overriding the default in-memory stores)
//  2. Starting negotiations asynchronously (Start) or synchronously
//     (StartSync)
//  3. Confirming formulated demands and observing the event stream
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable store (see
// session/sqlite) and a structured logger.
package concord

import (
	"context"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/config"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/engine"
	"github.com/concordlabs/concord/logging"
	"github.com/concordlabs/concord/session"
)

// Options configures the Concord instance.
type Options struct {
	// Config holds the engine timeouts, round limits and activation tuning.
	Config config.Config

	// Stores (default to in-memory implementations if not provided).
	SessionStore core.SessionStore
	TraceStore   core.TraceStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Concord is the high-level façade aggregating the engine and its stores.
type Concord struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Concord instance around the given capability set. Any unset
// store is initialized in-memory. A nil Activator falls back to the built-in
// cosine matcher.
func New(caps capability.Set, optFns ...func(o *Options)) *Concord {
	opts := Options{
		Config:       config.Default(),
		SessionStore: session.NewInMemoryStore(),
		TraceStore:   session.NewInMemoryTraceStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if caps.Activator == nil {
		caps.Activator = capability.CosineActivator{}
	}

	e := engine.New(caps, func(o *engine.Options) {
		o.Config = opts.Config
		o.SessionStore = opts.SessionStore
		o.TraceStore = opts.TraceStore
		o.Logger = opts.Logger
	})
	return &Concord{opts: opts, engine: e}
}

// Start begins an asynchronous negotiation, returning the session id, its
// ordered event stream and the terminal error channel.
func (c *Concord) Start(ctx context.Context, rawInput string) (string, <-chan core.Event, <-chan error, error) {
	return c.engine.Start(ctx, rawInput)
}

// StartSync is a synchronous helper that auto-confirms the demand as soon as
// formulation completes, drains the event stream and returns the collected
// events plus the terminal error (if any).
func (c *Concord) StartSync(ctx context.Context, rawInput string) (string, []core.Event, error) {
	sessionID, eventsCh, errorsCh, err := c.engine.Start(ctx, rawInput)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return sessionID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				if errorsCh == nil {
					return sessionID, events, nil
				}
				// The error channel is always closed at teardown, so this
				// receive resolves: a terminal failure or nil.
				return sessionID, events, <-errorsCh
			}
			events = append(events, event)
			if event.Type == core.EventFormulationReady {
				// Ignored-input errors cannot happen here: the event is
				// only emitted in FORMULATED.
				_ = c.engine.Confirm(sessionID)
			}

		case err, ok := <-errorsCh:
			if ok && err != nil {
				// The event stream closes at teardown before the failure
				// is reported, so the trailing events (session.failed
				// included) are still queued; collect them all.
				for event := range eventsCh {
					events = append(events, event)
				}
				return sessionID, events, err
			}
			errorsCh = nil
		}
	}
}

// Confirm submits the external confirmation for a formulated demand.
func (c *Concord) Confirm(sessionID string) error { return c.engine.Confirm(sessionID) }

// Cancel fails a running session with reason "cancelled".
func (c *Concord) Cancel(sessionID string) error { return c.engine.Cancel(sessionID) }

// Session returns a point-in-time clone of a session.
func (c *Concord) Session(sessionID string) (*core.Session, error) {
	return c.engine.Session(sessionID)
}

// Trace exports the finalized trace of a terminal session.
func (c *Concord) Trace(sessionID string) (core.Trace, error) { return c.engine.Trace(sessionID) }

// Subscribe attaches an additional observer to a session's event stream.
func (c *Concord) Subscribe(sessionID string) (<-chan core.Event, func()) {
	return c.engine.Subscribe(sessionID)
}

// SubmitPlanAction records a participant's accept or reject of a completed
// session's plan.
func (c *Concord) SubmitPlanAction(sessionID, participantID string, accept bool) error {
	return c.engine.SubmitPlanAction(sessionID, participantID, accept)
}
