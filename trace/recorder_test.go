package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordlabs/concord/core"
)

func TestRecorder_AppendAssignsSequence(t *testing.T) {
	r := NewRecorder("s1", "")
	require.NoError(t, r.Append(core.StepRecord{Type: core.StepSession, Name: "session.created"}))
	require.NoError(t, r.Append(core.StepRecord{Type: core.StepTransition, Name: "formulation.started"}))
	assert.Equal(t, 2, r.Len())

	doc, err := r.Finalize(core.StateFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Steps[0].Seq)
	assert.Equal(t, 2, doc.Steps[1].Seq)
	assert.False(t, doc.Steps[0].At.IsZero(), "timestamps assigned when unset")
}

func TestRecorder_NoPartialDocument(t *testing.T) {
	r := NewRecorder("s1", "")
	_ = r.Append(core.StepRecord{Type: core.StepSession})
	_, err := r.Document()
	assert.ErrorIs(t, err, ErrNotFinalized)
}

func TestRecorder_FinalizeOnce(t *testing.T) {
	r := NewRecorder("s1", "parent-1")
	doc, err := r.Finalize(core.StateCompleted)
	require.NoError(t, err)
	assert.Equal(t, "s1", doc.SessionID)
	assert.Equal(t, "parent-1", doc.ParentID)
	assert.Equal(t, core.StateCompleted, doc.FinalState)

	_, err = r.Finalize(core.StateCompleted)
	assert.ErrorIs(t, err, ErrFinalized)

	err = r.Append(core.StepRecord{Type: core.StepOffer})
	assert.ErrorIs(t, err, ErrFinalized, "finalized trace is immutable")

	got, err := r.Document()
	require.NoError(t, err)
	assert.Equal(t, doc.FinalizedAt, got.FinalizedAt)
}

func TestReplay_ReconstructsStateSequence(t *testing.T) {
	r := NewRecorder("s1", "")
	transitions := []struct{ from, to core.State }{
		{core.StateCreated, core.StateFormulating},
		{core.StateFormulating, core.StateFormulated},
		{core.StateFormulated, core.StateEncoding},
		{core.StateEncoding, core.StateOffering},
		{core.StateOffering, core.StateBarrierWaiting},
		{core.StateBarrierWaiting, core.StateSynthesizing},
		{core.StateSynthesizing, core.StateSynthesizing},
		{core.StateSynthesizing, core.StateCompleted},
	}
	_ = r.Append(core.StepRecord{Type: core.StepSession, Name: "session.created"})
	for _, tr := range transitions {
		_ = r.Append(core.StepRecord{Type: core.StepTransition, From: tr.from, To: tr.to})
		_ = r.Append(core.StepRecord{Type: core.StepCapability, Name: "noise"})
	}
	doc, err := r.Finalize(core.StateCompleted)
	require.NoError(t, err)

	states := Replay(doc)
	want := []core.State{
		core.StateCreated, core.StateFormulating, core.StateFormulated,
		core.StateEncoding, core.StateOffering, core.StateBarrierWaiting,
		core.StateSynthesizing, core.StateSynthesizing, core.StateCompleted,
	}
	assert.Equal(t, want, states)

	// Replaying the same document again yields the same sequence.
	assert.Equal(t, states, Replay(doc))
}
