// Package emitter fans typed lifecycle events out to per-session observers.
// Delivery is at-least-once and fire-and-forget relative to the caller:
// emitting never blocks or fails the state transition that produced the
// event. The emitter does not filter or prioritize; every event reaches
// every observer registered for its session.
package emitter

import (
	"sync"

	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/logging"
)

// subscriber pumps an unbounded in-memory queue into a delivery channel so
// a slow observer can never stall the state machine.
type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []core.Event
	closed bool
	done   chan struct{}
	ch     chan core.Event
}

func newSubscriber(buf int) *subscriber {
	s := &subscriber{done: make(chan struct{}), ch: make(chan core.Event, buf)}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.ch <- ev:
		case <-s.done:
			// The observer is gone; hand off what still fits in the
			// delivery buffer and exit rather than block forever.
			s.flush(ev)
			close(s.ch)
			return
		}
	}
}

// flush moves remaining queued events into the delivery buffer without
// blocking. Events that no longer fit are dropped.
func (s *subscriber) flush(ev core.Event) {
	for {
		select {
		case s.ch <- ev:
		default:
			return
		}
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func (s *subscriber) enqueue(ev core.Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// close marks the subscriber finished; the pump delivers whatever is queued
// for as long as the observer keeps receiving (or buffer room remains) and
// then closes the delivery channel. The pump never outlives a closed
// subscriber, even when the observer stopped reading.
func (s *subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// Emitter is a per-session event fan-out. Observer registrations are scoped
// to the lifetime of one session and torn down when the session becomes
// terminal.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	done   map[string]bool
	buf    int
	logger logging.Logger
}

// Options configures an Emitter.
type Options struct {
	// BufferSize is the delivery channel capacity per observer.
	BufferSize int
	Logger     logging.Logger
}

// New constructs an Emitter.
func New(optFns ...func(o *Options)) *Emitter {
	opts := Options{BufferSize: 100, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Emitter{subs: make(map[string][]*subscriber), done: make(map[string]bool), buf: opts.BufferSize, logger: opts.Logger}
}

// Subscribe registers an observer for one session. The cancel function
// detaches the observer; queued events that still fit the delivery buffer
// are handed off and the channel is then closed. Subscribing to an
// already-closed session returns an immediately closed channel.
func (e *Emitter) Subscribe(sessionID string) (<-chan core.Event, func()) {
	sub := newSubscriber(e.buf)
	e.mu.Lock()
	if e.done[sessionID] {
		e.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	e.subs[sessionID] = append(e.subs[sessionID], sub)
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		list := e.subs[sessionID]
		for i, s := range list {
			if s == sub {
				e.subs[sessionID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Emit delivers the event to every observer registered for its session, in
// emission order per observer. It never blocks.
func (e *Emitter) Emit(ev core.Event) {
	e.mu.RLock()
	list := e.subs[ev.SessionID]
	e.mu.RUnlock()
	for _, sub := range list {
		sub.enqueue(ev)
	}
	e.logger.Debug("event emitted", "session_id", ev.SessionID, "type", string(ev.Type))
}

// Close tears down all observers of a session after its terminal state.
// Queued events that still fit each delivery buffer are handed off before
// the channels close; an observer that stopped reading cannot pin its pump.
func (e *Emitter) Close(sessionID string) {
	e.mu.Lock()
	list := e.subs[sessionID]
	delete(e.subs, sessionID)
	e.done[sessionID] = true
	e.mu.Unlock()
	for _, sub := range list {
		sub.close()
	}
}
