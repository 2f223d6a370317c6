package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordlabs/concord/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "concord.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	sess := core.NewSession("book a venue", "", 0)
	sess.SetIntent(core.Intent{Text: "venue for friday", Keywords: []string{"venue"}})
	sess.SetVector([]float64{0.5, 0.25})
	sess.SetSnapshot(core.Snapshot{
		TakenAt: time.Now().UTC(),
		Participants: []core.ActivatedParticipant{
			{Profile: core.ParticipantProfile{ID: "p1", Name: "One", Bio: "venues"}, Score: 0.8, Status: core.ParticipantActivated},
		},
	})
	sess.AddOffer(core.Offer{ID: "o1", SessionID: sess.ID, ParticipantID: "p1", Content: "hall for 200", Independent: true, ReceivedAt: time.Now().UTC()})
	require.NoError(t, store.Put(sess))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, core.StateCreated, got.CurrentState())
	assert.Equal(t, "venue for friday", got.Intent.Text)
	assert.Equal(t, []float64{0.5, 0.25}, got.Vector)
	require.Len(t, got.Snapshot.Participants, 1)
	assert.Equal(t, 0.8, got.Snapshot.Participants[0].Score)
	require.Len(t, got.GetOffers(), 1)
	assert.True(t, got.GetOffers()[0].Independent)
}

func TestStore_PutUpserts(t *testing.T) {
	store := openTestStore(t)
	sess := core.NewSession("demand", "", 0)
	require.NoError(t, store.Put(sess))

	require.NoError(t, sess.SetState(core.StateFormulating))
	sess.SetResult(&core.Result{Failure: &core.Failure{Class: core.FailureUpstream, Reason: "x"}})
	require.NoError(t, store.Put(sess))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateFormulating, got.CurrentState())
	require.NotNil(t, got.Result)
	assert.Equal(t, core.FailureUpstream, got.Result.Failure.Class)
}

func TestStore_GetUnknown(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("missing")
	assert.Error(t, err)
}

func TestStore_ChildIDs(t *testing.T) {
	store := openTestStore(t)
	parent := core.NewSession("parent demand", "", 0)
	require.NoError(t, store.Put(parent))

	child1 := core.NewSession("sub one", parent.ID, 1)
	time.Sleep(2 * time.Millisecond) // distinct created_ms ordering
	child2 := core.NewSession("sub two", parent.ID, 1)
	require.NoError(t, store.Put(child1))
	require.NoError(t, store.Put(child2))

	ids, err := store.ChildIDs(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child1.ID, child2.ID}, ids)

	ids, err = store.ChildIDs("nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_TraceRoundTrip(t *testing.T) {
	store := openTestStore(t)
	doc := core.Trace{
		SessionID:  "s1",
		ParentID:   "parent-1",
		FinalState: core.StateCompleted,
		Steps: []core.StepRecord{
			{Seq: 1, Type: core.StepTransition, Name: "formulation.started", From: core.StateCreated, To: core.StateFormulating},
			{Seq: 2, Type: core.StepCapability, Name: "formulate", CallID: "c1", Duration: 42 * time.Millisecond},
		},
		FinalizedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveTrace(doc))

	got, err := store.GetTrace("s1")
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, got.FinalState)
	assert.Equal(t, "parent-1", got.ParentID)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, core.StepTransition, got.Steps[0].Type)
	assert.Equal(t, 42*time.Millisecond, got.Steps[1].Duration)

	_, err = store.GetTrace("missing")
	assert.Error(t, err)
}
