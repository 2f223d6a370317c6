package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5*time.Second, cfg.OfferDeadline)
	assert.Equal(t, 2, cfg.FullToolRounds)
	assert.Equal(t, 4, cfg.MaxSynthesisRounds)
	assert.Equal(t, 3, cfg.MaxChildDepth)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CONCORD_OFFER_DEADLINE", "250ms")
	t.Setenv("CONCORD_MAX_SYNTHESIS_ROUNDS", "7")
	t.Setenv("CONCORD_ACTIVATION_THRESHOLD", "0.5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.OfferDeadline)
	assert.Equal(t, 7, cfg.MaxSynthesisRounds)
	assert.Equal(t, 0.5, cfg.ActivationThreshold)
	// untouched values keep their defaults
	assert.Equal(t, 2, cfg.FullToolRounds)
}

func TestFromEnv_BadValue(t *testing.T) {
	t.Setenv("CONCORD_OFFER_DEADLINE", "not-a-duration")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.OfferDeadline = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FullToolRounds = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxSynthesisRounds = 1
	assert.Error(t, cfg.Validate(), "hard limit under the full rounds makes no sense")

	cfg = Default()
	cfg.MaxChildDepth = -1
	assert.Error(t, cfg.Validate())
}
