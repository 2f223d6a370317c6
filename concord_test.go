package concord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/config"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/session"
)

type fixedFormulator struct{}

func (fixedFormulator) Formulate(ctx context.Context, rawInput string, profiles []core.ParticipantProfile) (core.Intent, error) {
	return core.Intent{Text: rawInput}, nil
}

type fixedEncoder struct{}

func (fixedEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, nil
}

func (fixedEncoder) BatchEncode(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1}
	}
	return out, nil
}

type fixedOffers struct{}

func (fixedOffers) GenerateOffer(ctx context.Context, participantID string, intent core.Intent) (string, error) {
	return "offer from " + participantID, nil
}

type fixedResponder struct{}

func (fixedResponder) Ask(ctx context.Context, participantID, question string) (string, error) {
	return "ok", nil
}

type planAggregator struct{}

func (planAggregator) Reason(ctx context.Context, req capability.ReasonRequest) (capability.ReasonOutcome, error) {
	return capability.ReasonOutcome{Plan: &core.Plan{Content: "the deal", EmittedAt: time.Now().UTC()}}, nil
}

type fixedDiscoverer struct{}

func (fixedDiscoverer) Discover(ctx context.Context, a, b capability.DiscoveryInput, triggerReason string) (string, error) {
	return "fit", nil
}

type fixedParticipants struct{}

func (fixedParticipants) Profiles(ctx context.Context) ([]core.ParticipantProfile, error) {
	return []core.ParticipantProfile{
		{ID: "p1", Name: "One", Bio: "does things"},
		{ID: "p2", Name: "Two", Bio: "does other things"},
	}, nil
}

func testCaps() capability.Set {
	return capability.Set{
		Formulator:   fixedFormulator{},
		Encoder:      fixedEncoder{},
		Offers:       fixedOffers{},
		Responder:    fixedResponder{},
		Aggregator:   planAggregator{},
		Discoverer:   fixedDiscoverer{},
		Participants: fixedParticipants{},
		// Activator deliberately nil: New must default it.
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.OfferDeadline = 200 * time.Millisecond
	return cfg
}

func TestStartSync_CompletesWithPlan(t *testing.T) {
	c := New(testCaps(), func(o *Options) { o.Config = testConfig() })

	id, events, err := c.StartSync(context.Background(), "settle on a deal")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NotEmpty(t, events)

	assert.Equal(t, core.EventSessionCreated, events[0].Type)
	assert.Equal(t, core.EventPlanReady, events[len(events)-1].Type)

	sess, err := c.Session(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, sess.CurrentState())
	require.NotNil(t, sess.Result.Plan)
	assert.Equal(t, "the deal", sess.Result.Plan.Content)

	doc, err := c.Trace(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, doc.FinalState)
}

func TestStartSync_SurfacesFailure(t *testing.T) {
	caps := testCaps()
	caps.Aggregator = protocolBreaker{}
	c := New(caps, func(o *Options) { o.Config = testConfig() })

	_, events, err := c.StartSync(context.Background(), "doomed")
	require.Error(t, err)
	var failure core.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, core.FailureProtocol, failure.Class)

	// The collected stream must be complete up to and including the
	// terminal event, even though the error surfaces first.
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.EventSessionFailed, last.Type)
	assert.Equal(t, core.StateFailed, last.To)
}

type protocolBreaker struct{}

func (protocolBreaker) Reason(ctx context.Context, req capability.ReasonRequest) (capability.ReasonOutcome, error) {
	return capability.ReasonOutcome{}, nil
}

func TestNew_UsesProvidedStores(t *testing.T) {
	store := session.NewInMemoryStore()
	c := New(testCaps(), func(o *Options) {
		o.Config = testConfig()
		o.SessionStore = store
	})

	id, _, err := c.StartSync(context.Background(), "deal")
	require.NoError(t, err)

	// The façade must have wired the provided store into the engine.
	sess, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, core.StateCompleted, sess.CurrentState())
}

func TestSubmitPlanAction_ThroughFacade(t *testing.T) {
	c := New(testCaps(), func(o *Options) { o.Config = testConfig() })
	id, _, err := c.StartSync(context.Background(), "deal")
	require.NoError(t, err)

	require.NoError(t, c.SubmitPlanAction(id, "p1", true))
	sess, err := c.Session(id)
	require.NoError(t, err)
	require.Len(t, sess.Result.PlanActions, 1)
	assert.Equal(t, "p1", sess.Result.PlanActions[0].ParticipantID)
}
