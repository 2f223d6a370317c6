// Package engine implements the negotiation session state machine: the
// top-level driver that owns all session mutation, sequences the barrier
// fan-out and the aggregator tool loop, spawns child sessions, and
// guarantees that every state transition emits exactly one event and
// appends exactly one trace record before the next transition.
package engine
