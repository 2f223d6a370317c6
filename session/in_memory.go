// Package session provides store implementations for sessions and finalized
// traces. The in-memory variants are safe for concurrent access and best
// suited for tests or ephemeral demo setups; the sqlite subpackage is the
// durable option.
package session

import (
	"fmt"
	"sync"

	"github.com/concordlabs/concord/core"
)

// InMemoryStore is a volatile core.SessionStore keeping clones in a process
// local map. Returned sessions are clones so callers can never mutate the
// stored copy.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Put stores a clone of the session keyed by its id.
func (s *InMemoryStore) Put(session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a clone of the stored session.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sess.Clone(), nil
}

// InMemoryTraceStore is a volatile core.TraceStore.
type InMemoryTraceStore struct {
	mu     sync.RWMutex
	traces map[string]core.Trace
}

// NewInMemoryTraceStore constructs an empty in-memory trace store.
func NewInMemoryTraceStore() *InMemoryTraceStore {
	return &InMemoryTraceStore{traces: make(map[string]core.Trace)}
}

// SaveTrace stores a finalized trace keyed by session id.
func (s *InMemoryTraceStore) SaveTrace(trace core.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[trace.SessionID] = trace
	return nil
}

// GetTrace returns the finalized trace for a session.
func (s *InMemoryTraceStore) GetTrace(sessionID string) (core.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.traces[sessionID]
	if !ok {
		return core.Trace{}, fmt.Errorf("trace for session %s not found", sessionID)
	}
	return tr, nil
}
