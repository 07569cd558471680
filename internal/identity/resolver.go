// Package identity turns a face embedding into an enrollment decision
// using a calibrated top-2 nearest-neighbor rule.
package identity

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// Unknown: no enrolled person is similar enough.
	Unknown Outcome = iota
	// Match: exactly one enrolled person is a confident match.
	Match
	// Ambiguous: the two best candidates are too close to call.
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Resolution is the result of matching one embedding against the roster.
type Resolution struct {
	Outcome Outcome
	// Best is the top candidate. Set for Match and Ambiguous.
	Best store.Neighbor
	// Candidates holds the top candidates for the disambiguation screen.
	// Set only for Ambiguous.
	Candidates []store.Neighbor
}

// Resolver decides who an embedding belongs to. The match threshold gates
// whether the best candidate counts at all; the ambiguity margin gates
// whether the runner-up is close enough to force a manual pick.
type Resolver struct {
	searcher  store.VectorSearcher
	threshold float64
	margin    float64
	log       zerolog.Logger
}

// NewResolver creates an identity resolver.
func NewResolver(searcher store.VectorSearcher, threshold, margin float64, log zerolog.Logger) *Resolver {
	return &Resolver{
		searcher:  searcher,
		threshold: threshold,
		margin:    margin,
		log:       log.With().Str("component", "identity").Logger(),
	}
}

// Resolve matches the embedding against the enrolled roster.
func (r *Resolver) Resolve(ctx context.Context, embedding []float32) (*Resolution, error) {
	neighbors, err := r.searcher.TopK(ctx, embedding, 2)
	if err != nil {
		return nil, fmt.Errorf("searching roster: %w", err)
	}

	res := r.classify(neighbors)

	evt := r.log.Debug().Str("outcome", res.Outcome.String())
	if len(neighbors) > 0 {
		evt = evt.Str("best", neighbors[0].Name).Float64("similarity", neighbors[0].Similarity)
	}
	evt.Msg("embedding resolved")

	return res, nil
}

func (r *Resolver) classify(neighbors []store.Neighbor) *Resolution {
	if len(neighbors) == 0 || neighbors[0].Similarity < r.threshold {
		return &Resolution{Outcome: Unknown}
	}

	best := neighbors[0]

	// A close runner-up belonging to a different person means the scan
	// cannot be trusted to a single identity.
	if len(neighbors) > 1 {
		second := neighbors[1]
		if second.PersonID != best.PersonID &&
			second.Similarity >= r.threshold &&
			best.Similarity-second.Similarity < r.margin {
			return &Resolution{
				Outcome:    Ambiguous,
				Best:       best,
				Candidates: []store.Neighbor{best, second},
			}
		}
	}

	return &Resolution{Outcome: Match, Best: best}
}
