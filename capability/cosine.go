package capability

import (
	"context"
	"math"
	"sort"

	"github.com/concordlabs/concord/core"
)

// CosineActivator is the default Activator: cosine similarity between the
// demand vector and each candidate, thresholded and capped. It is pure
// arithmetic and needs no external service.
type CosineActivator struct{}

var _ Activator = CosineActivator{}

// Activate scores every candidate, drops those under params.Threshold, sorts
// the rest by score descending (ties broken by participant id for
// determinism) and keeps at most params.Max.
func (CosineActivator) Activate(ctx context.Context, demand []float64, candidates []core.ParticipantVector, params ActivationParams) ([]core.Activation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.Activation, 0, len(candidates))
	for _, c := range candidates {
		score := cosine(demand, c.Vector)
		if score < params.Threshold {
			continue
		}
		out = append(out, core.Activation{ParticipantID: c.ParticipantID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	if params.Max > 0 && len(out) > params.Max {
		out = out[:params.Max]
	}
	return out, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
