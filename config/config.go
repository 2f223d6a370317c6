// Package config holds the engine's tunable parameters. The round limit and
// deadline values are configuration defaults, not derived behavior; the
// contracts they feed (tool-set restriction, hard convergence failure) are
// enforced in code regardless of the values chosen here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines the deadlines, limits and buffer sizes of the engine.
type Config struct {
	// FormulateTimeout bounds the formulator call.
	FormulateTimeout time.Duration `env:"CONCORD_FORMULATE_TIMEOUT" envDefault:"30s"`
	// EncodeTimeout bounds each encoder and activator call.
	EncodeTimeout time.Duration `env:"CONCORD_ENCODE_TIMEOUT" envDefault:"15s"`
	// OfferDeadline is the single barrier deadline for all per-participant
	// offer generation in one round.
	OfferDeadline time.Duration `env:"CONCORD_OFFER_DEADLINE" envDefault:"5s"`
	// AggregatorTimeout bounds each aggregator reasoning call.
	AggregatorTimeout time.Duration `env:"CONCORD_AGGREGATOR_TIMEOUT" envDefault:"60s"`
	// AskTimeout bounds an ask-participant reply.
	AskTimeout time.Duration `env:"CONCORD_ASK_TIMEOUT" envDefault:"20s"`
	// DiscoveryTimeout bounds a discovery call.
	DiscoveryTimeout time.Duration `env:"CONCORD_DISCOVERY_TIMEOUT" envDefault:"30s"`

	// FullToolRounds is the number of aggregator rounds with the full tool
	// set; beyond it only emit-plan and ask-participant remain eligible.
	FullToolRounds int `env:"CONCORD_FULL_TOOL_ROUNDS" envDefault:"2"`
	// MaxSynthesisRounds is the hard total round limit; exhausting it
	// without a plan fails the session.
	MaxSynthesisRounds int `env:"CONCORD_MAX_SYNTHESIS_ROUNDS" envDefault:"4"`
	// MaxChildDepth bounds sub-negotiation recursion.
	MaxChildDepth int `env:"CONCORD_MAX_CHILD_DEPTH" envDefault:"3"`

	// ActivationThreshold and MaxActivated are passed to the matcher.
	ActivationThreshold float64 `env:"CONCORD_ACTIVATION_THRESHOLD" envDefault:"0.35"`
	MaxActivated        int     `env:"CONCORD_MAX_ACTIVATED" envDefault:"8"`

	// EventBufferSize sets observer channel buffering.
	EventBufferSize int `env:"CONCORD_EVENT_BUFFER_SIZE" envDefault:"100"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		FormulateTimeout:    30 * time.Second,
		EncodeTimeout:       15 * time.Second,
		OfferDeadline:       5 * time.Second,
		AggregatorTimeout:   60 * time.Second,
		AskTimeout:          20 * time.Second,
		DiscoveryTimeout:    30 * time.Second,
		FullToolRounds:      2,
		MaxSynthesisRounds:  4,
		MaxChildDepth:       3,
		ActivationThreshold: 0.35,
		MaxActivated:        8,
		EventBufferSize:     100,
	}
}

// FromEnv loads configuration from environment variables, falling back to
// the defaults above.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would break the engine's contracts.
func (c Config) Validate() error {
	if c.OfferDeadline <= 0 {
		return fmt.Errorf("offer deadline must be positive")
	}
	if c.FullToolRounds < 1 {
		return fmt.Errorf("full tool rounds must be at least 1")
	}
	if c.MaxSynthesisRounds < c.FullToolRounds {
		return fmt.Errorf("max synthesis rounds must be >= full tool rounds")
	}
	if c.MaxChildDepth < 0 {
		return fmt.Errorf("max child depth must not be negative")
	}
	return nil
}
