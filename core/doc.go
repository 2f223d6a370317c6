// Package core defines the shared data model of the Concord negotiation
// engine: sessions and their state vocabulary, participants and per-session
// snapshots, offers, the closed tool-call variant set, lifecycle events,
// trace records and the persistence contracts.
//
// The engine package owns all session mutation. Everything else in this
// package is either immutable after construction or append-only.
package core
