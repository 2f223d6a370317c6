package core

// SessionStore persists sessions keyed by identity. The engine writes a
// session at creation and again at its terminal state; parent/child
// references are resolved through the store by id, never by live object
// references.
type SessionStore interface {
	Put(session *Session) error
	Get(id string) (*Session, error)
}

// TraceStore persists finalized traces. Only complete traces are ever
// stored; there is no API for partial writes.
type TraceStore interface {
	SaveTrace(trace Trace) error
	GetTrace(sessionID string) (Trace, error)
}
