// Package weights derives the per-request weight vector over scoring
// dimensions from the candidate's declared priorities. It is the sole
// producer of normalized vectors: everything downstream may assume the
// sum-to-one invariant holds.
package weights

import (
	"fmt"
	"math"

	"github.com/matchd-io/matchd/internal/domain"
)

// DefaultBase is the configured starting distribution when a variant does
// not publish its own.
func DefaultBase() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:      0.30,
		domain.DimExperience:  0.20,
		domain.DimSalary:      0.25,
		domain.DimProximity:   0.20,
		domain.DimFlexibility: 0.05,
	}
}

// leverTargets maps coarse priority levers onto scoring dimensions.
var leverTargets = map[domain.PriorityLever][]domain.Dimension{
	domain.LeverEvolution:    {domain.DimExperience, domain.DimSkills},
	domain.LeverCompensation: {domain.DimSalary},
	domain.LeverProximity:    {domain.DimProximity},
	domain.LeverFlexibility:  {domain.DimFlexibility},
}

// Multiplier converts a priority note into a weight multiplier:
// 1 halves the weight, 5.5 is neutral, 10 doubles it.
func Multiplier(note int) float64 {
	if note < 1 {
		note = 1
	}
	if note > 10 {
		note = 10
	}
	return 0.5 + float64(note-1)*(1.5/9)
}

// Resolve applies the candidate's priorities to the base vector and
// renormalizes. Dimensions targeted by several levers combine their
// multipliers by geometric mean so stacked levers cannot run away. With no
// priorities the base comes back unchanged (normalized).
func Resolve(base domain.WeightVector, priorities map[domain.PriorityLever]int) (domain.WeightVector, error) {
	out := base.Normalize()
	if len(priorities) == 0 {
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("resolve weights: %w", err)
		}
		return out, nil
	}

	factors := make(map[domain.Dimension][]float64)
	for lever, note := range priorities {
		for _, dim := range leverTargets[lever] {
			factors[dim] = append(factors[dim], Multiplier(note))
		}
	}
	for dim, ms := range factors {
		if _, scored := out[dim]; !scored {
			continue
		}
		out[dim] *= geometricMean(ms)
	}

	out = out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("resolve weights: %w", err)
	}
	return out, nil
}

func geometricMean(ms []float64) float64 {
	if len(ms) == 1 {
		return ms[0]
	}
	sum := 0.0
	for _, m := range ms {
		sum += math.Log(m)
	}
	return math.Exp(sum / float64(len(ms)))
}
