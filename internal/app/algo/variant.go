// Package algo holds the interchangeable matching strategies and the
// rule-based selector that picks between them. Variants live in a registry
// keyed by name; selection is data, not type hierarchy.
package algo

import (
	"context"
	"sort"
	"sync"

	"github.com/matchd-io/matchd/internal/domain"
)

// Request is one canonical matching request. Variants never mutate it.
type Request struct {
	Candidate *domain.Candidate
	Jobs      []*domain.JobPosting
}

// Variant is one interchangeable matching strategy.
type Variant interface {
	// Name identifies the variant in results and diagnostics.
	Name() string
	// Supports reports whether the variant would claim this request.
	Supports(req *Request) bool
	// BaseWeights is the variant's preferred weight distribution before
	// candidate priorities reshape it.
	BaseWeights() domain.WeightVector
	// Match scores the candidate against every job. A positive limit may
	// truncate to the top scores; zero scores everything.
	Match(ctx context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error)
}

// Degraded marks a fallback-chain variant. Degrade maps the confidence the
// orchestrator computed onto the reduced confidence the tier warrants.
type Degraded interface {
	Variant
	Degrade(confidence float64) float64
}

// Registry maps variant names to runnable variants.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]Variant)}
}

// Register adds or replaces a variant under its name.
func (r *Registry) Register(v Variant) {
	r.mu.Lock()
	r.variants[v.Name()] = v
	r.mu.Unlock()
}

// Get returns the named variant.
func (r *Registry) Get(name string) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[name]
	return v, ok
}

// Names lists registered variants in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.variants))
	for n := range r.variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ─── Shared scoring plumbing ────────────────────────────────────────────────

// restrict narrows the weight vector to the variant's dimensions and
// renormalizes, so partial variants still produce full-scale scores.
func restrict(weights domain.WeightVector, dims ...domain.Dimension) domain.WeightVector {
	out := make(domain.WeightVector, len(dims))
	for _, d := range dims {
		if v, ok := weights[d]; ok {
			out[d] = v
		} else {
			out[d] = 0
		}
	}
	return out.Normalize()
}

// zeroDimensions returns a full dimension map, everything zeroed. Variants
// overwrite the axes they actually score.
func zeroDimensions() map[domain.Dimension]domain.DimensionScore {
	out := make(map[domain.Dimension]domain.DimensionScore, len(domain.Dimensions()))
	for _, d := range domain.Dimensions() {
		out[d] = domain.DimensionScore{}
	}
	return out
}

// weighted stamps the resolved weight onto a primitive's score.
func weighted(s domain.DimensionScore, w float64) domain.DimensionScore {
	s.Weight = w
	return s
}

// compose folds the dimension scores into a 0..100 raw global score.
func compose(dims map[domain.Dimension]domain.DimensionScore) float64 {
	var s float64
	for _, ds := range dims {
		s += ds.Value * ds.Weight
	}
	return s * 100
}

// finish sorts by score (stable, so input order breaks ties) and applies the
// optional truncation.
func finish(results []domain.MatchResult, limit int) []domain.MatchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].GlobalScore > results[j].GlobalScore
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
