package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for sessions, events, offers and
// trace correlation.
func NewID() string { return uuid.NewString() }
