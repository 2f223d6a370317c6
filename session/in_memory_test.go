package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordlabs/concord/core"
)

func TestInMemoryStore_PutGetIsolation(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("demand", "", 0)
	sess.AddOffer(core.Offer{ID: "o1", ParticipantID: "p1", Content: "original"})
	require.NoError(t, store.Put(sess))

	// Mutating the live session after Put must not leak into the store.
	sess.AddOffer(core.Offer{ID: "o2", ParticipantID: "p2"})

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.GetOffers(), 1)

	// Mutating the returned clone must not change the stored copy.
	got.AddOffer(core.Offer{ID: "o3"})
	again, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Len(t, again.GetOffers(), 1)
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Get("missing")
	assert.Error(t, err)
}

func TestInMemoryStore_PutOverwrites(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("demand", "", 0)
	require.NoError(t, store.Put(sess))
	require.NoError(t, sess.SetState(core.StateFormulating))
	require.NoError(t, store.Put(sess))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFormulating, got.CurrentState())
}

func TestInMemoryTraceStore_RoundTrip(t *testing.T) {
	store := NewInMemoryTraceStore()
	doc := core.Trace{
		SessionID:   "s1",
		FinalState:  core.StateCompleted,
		Steps:       []core.StepRecord{{Seq: 1, Type: core.StepTransition, From: core.StateCreated, To: core.StateFormulating}},
		FinalizedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveTrace(doc))

	got, err := store.GetTrace("s1")
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, got.FinalState)
	require.Len(t, got.Steps, 1)

	_, err = store.GetTrace("missing")
	assert.Error(t, err)
}
