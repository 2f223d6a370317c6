package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/config"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/emitter"
	"github.com/concordlabs/concord/logging"
	"github.com/concordlabs/concord/session"
	"github.com/concordlabs/concord/trace"
)

// Options configures an Engine. All stores default to in-memory
// implementations and the logger to NoOp, so a bare New(caps) is usable in
// tests and demos.
type Options struct {
	Config       config.Config
	SessionStore core.SessionStore
	TraceStore   core.TraceStore
	Logger       logging.Logger
}

// Engine drives negotiation sessions through their lifecycle. It is the only
// component that mutates sessions, and it does so sequentially per session:
// one driving goroutine owns each session, so no two transitions of the same
// session ever race.
type Engine struct {
	caps     capability.Set
	cfg      config.Config
	sessions core.SessionStore
	traces   core.TraceStore
	emitter  *emitter.Emitter
	logger   logging.Logger

	mu     sync.RWMutex
	active map[string]*run
}

// run is the live driving state of one session: the mutable session record,
// its recorder, and the channels the driver suspends on.
type run struct {
	sess     *core.Session
	recorder *trace.Recorder
	profiles []core.ParticipantProfile
	confirm  chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	auto     bool
	failure  *core.Failure
	logger   logging.Logger
}

// New constructs an Engine around the provided capability set.
func New(caps capability.Set, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       config.Default(),
		SessionStore: session.NewInMemoryStore(),
		TraceStore:   session.NewInMemoryTraceStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		caps:     caps,
		cfg:      opts.Config,
		sessions: opts.SessionStore,
		traces:   opts.TraceStore,
		emitter:  emitter.New(func(o *emitter.Options) { o.BufferSize = opts.Config.EventBufferSize; o.Logger = opts.Logger }),
		logger:   opts.Logger,
		active:   make(map[string]*run),
	}
}

// Start accepts a raw demand and begins an asynchronous negotiation session.
// It returns the session id, an ordered event stream for the session, and a
// channel delivering the terminal failure (if any) before both channels
// close.
func (e *Engine) Start(ctx context.Context, rawInput string) (string, <-chan core.Event, <-chan error, error) {
	r, events, errs, err := e.launch(ctx, rawInput, "", 0, false)
	if err != nil {
		return "", nil, nil, err
	}
	return r.sess.ID, events, errs, nil
}

// launch creates a session, registers it, emits session.created and starts
// the driving goroutine. Child sessions (auto=true) skip the external event
// subscription and the confirmation wait.
func (e *Engine) launch(ctx context.Context, rawInput, parentID string, depth int, auto bool) (*run, <-chan core.Event, <-chan error, error) {
	if rawInput == "" {
		return nil, nil, nil, fmt.Errorf("raw input is required")
	}
	sess := core.NewSession(rawInput, parentID, depth)
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		sess:     sess,
		recorder: trace.NewRecorder(sess.ID, parentID),
		confirm:  make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
		auto:     auto,
		logger:   logging.WithSession(e.logger, sess.ID),
	}

	e.mu.Lock()
	e.active[sess.ID] = r
	e.mu.Unlock()

	var events <-chan core.Event
	if !auto {
		events, _ = e.emitter.Subscribe(sess.ID)
	}

	created := core.NewEvent(sess.ID, core.EventSessionCreated)
	created.Detail = rawInput
	e.emitter.Emit(created)
	_ = r.recorder.Append(core.StepRecord{
		Type:   core.StepSession,
		Name:   string(core.EventSessionCreated),
		Input:  rawInput,
		Output: string(core.StateCreated),
		At:     created.Timestamp,
	})
	if err := e.sessions.Put(sess); err != nil {
		r.logger.Warn("initial session persist failed", "error", err.Error())
	}

	errs := make(chan error, 1)
	go e.drive(runCtx, r, errs)
	return r, events, errs, nil
}

// Confirm submits the external confirmation input for a session. It is
// accepted only in FORMULATED; in any other state the input is reported as
// ignored and the session is left untouched.
func (e *Engine) Confirm(sessionID string) error {
	e.mu.RLock()
	r := e.active[sessionID]
	e.mu.RUnlock()
	if r == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if state := r.sess.CurrentState(); state != core.StateFormulated {
		r.logger.Info("confirmation input ignored", "state", string(state))
		return &InputIgnoredError{SessionID: sessionID, State: state}
	}
	select {
	case r.confirm <- struct{}{}:
	default:
	}
	return nil
}

// Cancel transitions a running session to FAILED with reason "cancelled".
// The transition still emits its event and trace record.
func (e *Engine) Cancel(sessionID string) error {
	e.mu.RLock()
	r := e.active[sessionID]
	e.mu.RUnlock()
	if r == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}
	r.cancel()
	return nil
}

// SubmitPlanAction records one participant's accept/reject of the final
// plan of a completed session.
func (e *Engine) SubmitPlanAction(sessionID, participantID string, accept bool) error {
	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if _, ok := sess.Snapshot.Participant(participantID); !ok {
		return fmt.Errorf("participant %s not in session %s snapshot", participantID, sessionID)
	}
	if !sess.AddPlanAction(core.PlanAction{ParticipantID: participantID, Accept: accept, At: time.Now().UTC()}) {
		return &InputIgnoredError{SessionID: sessionID, State: sess.CurrentState()}
	}
	return e.sessions.Put(sess)
}

// Session returns a clone of the session: the live one while running, the
// persisted one after terminal.
func (e *Engine) Session(sessionID string) (*core.Session, error) {
	e.mu.RLock()
	r := e.active[sessionID]
	e.mu.RUnlock()
	if r != nil {
		return r.sess.Clone(), nil
	}
	return e.sessions.Get(sessionID)
}

// Trace exports the full ordered trace of a terminal session. Running
// sessions have no observable trace.
func (e *Engine) Trace(sessionID string) (core.Trace, error) {
	return e.traces.GetTrace(sessionID)
}

// Subscribe attaches an observer to a session's ordered event stream.
func (e *Engine) Subscribe(sessionID string) (<-chan core.Event, func()) {
	return e.emitter.Subscribe(sessionID)
}

// transition applies one guarded state transition and, before anything else
// may happen to the session, emits its single event and appends its single
// trace record. This ordering is the core correctness invariant.
func (e *Engine) transition(r *run, to core.State, typ core.EventType, mut func(ev *core.Event)) error {
	from := r.sess.CurrentState()
	if err := r.sess.SetState(to); err != nil {
		return err
	}
	ev := core.NewTransitionEvent(r.sess.ID, typ, from, to)
	if mut != nil {
		mut(&ev)
	}
	e.emitter.Emit(ev)
	_ = r.recorder.Append(core.StepRecord{
		Type:   core.StepTransition,
		Name:   string(typ),
		From:   from,
		To:     to,
		Output: ev.Detail,
		At:     ev.Timestamp,
	})
	r.logger.Debug("state transition", "from", string(from), "to", string(to), "event", string(typ))
	return nil
}

// recordCapability appends the trace record for one external capability
// call and logs it.
func (e *Engine) recordCapability(r *run, name, callID, input, output string, dur time.Duration, err error) {
	rec := core.StepRecord{
		Type:     core.StepCapability,
		Name:     name,
		Input:    input,
		Output:   output,
		CallID:   callID,
		Duration: dur,
	}
	if err != nil {
		rec.Output = err.Error()
	}
	_ = r.recorder.Append(rec)
	logging.LogCapabilityCall(r.logger, name, callID, dur, err)
}

// fail moves the session to FAILED with a classified reason. Timeouts and
// ignored inputs never reach here; everything that does is a terminal
// failure and is reported through both an event and a trace record.
func (e *Engine) fail(ctx context.Context, r *run, err error) {
	f := classifyFailure(ctx, err)
	r.failure = &f
	r.sess.SetResult(&core.Result{Failure: &f})
	terr := e.transition(r, core.StateFailed, core.EventSessionFailed, func(ev *core.Event) {
		ev.Detail = f.Reason
	})
	if terr != nil {
		r.logger.Error("failed to record session failure", "error", terr.Error())
	}
	r.logger.Warn("session failed", "class", string(f.Class), "reason", f.Reason)
}

// finalize freezes the trace, persists session and trace, and tears down
// the session's observers. Called exactly once per session, at terminal
// state.
func (e *Engine) finalize(r *run) {
	doc, err := r.recorder.Finalize(r.sess.CurrentState())
	if err != nil {
		r.logger.Error("trace finalize failed", "error", err.Error())
	} else if err := e.traces.SaveTrace(doc); err != nil {
		r.logger.Error("trace persist failed", "error", err.Error())
	}
	if err := e.sessions.Put(r.sess); err != nil {
		r.logger.Error("session persist failed", "error", err.Error())
	}
	e.emitter.Close(r.sess.ID)

	e.mu.Lock()
	delete(e.active, r.sess.ID)
	e.mu.Unlock()

	close(r.done)
	r.cancel()
}
