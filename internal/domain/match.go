// Package domain — match scoring types.
// A MatchResult is the unit of output: one scored job for one candidate.
package domain

import (
	"fmt"
	"math"
	"sort"
)

// Dimension is a scoring axis.
type Dimension string

const (
	DimSkills      Dimension = "skills"
	DimExperience  Dimension = "experience"
	DimSalary      Dimension = "salary"
	DimProximity   Dimension = "proximity"
	DimFlexibility Dimension = "flexibility"
	DimCulture     Dimension = "culture"
	DimContract    Dimension = "contract"
)

// Dimensions lists all scoring axes in canonical order.
func Dimensions() []Dimension {
	return []Dimension{DimSkills, DimExperience, DimSalary, DimProximity, DimFlexibility, DimCulture, DimContract}
}

// WeightTolerance is the floating slack allowed on the sum-to-one invariant.
const WeightTolerance = 1e-6

// WeightVector distributes importance over scoring dimensions.
// The weight resolver is the sole producer of normalized vectors.
type WeightVector map[Dimension]float64

// Clone returns an independent copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for d, v := range w {
		out[d] = v
	}
	return out
}

// Sum returns the total mass of the vector.
func (w WeightVector) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Normalize returns a copy scaled so components sum to 1.0. A vector with no
// positive mass normalizes to an equal split over its dimensions.
func (w WeightVector) Normalize() WeightVector {
	out := w.Clone()
	s := out.Sum()
	if s <= 0 {
		if len(out) == 0 {
			return out
		}
		eq := 1.0 / float64(len(out))
		for d := range out {
			out[d] = eq
		}
		return out
	}
	for d := range out {
		out[d] /= s
	}
	return out
}

// Validate enforces the normalized-vector invariant.
func (w WeightVector) Validate() error {
	for d, v := range w {
		if v < 0 {
			return fmt.Errorf("weight %s: %w", d, ErrNegativeWeight)
		}
	}
	if math.Abs(w.Sum()-1.0) > WeightTolerance {
		return fmt.Errorf("weight sum %.9f: %w", w.Sum(), ErrWeightsNotNormalized)
	}
	return nil
}

// SortedDimensions returns the vector's dimensions in lexical order, for
// deterministic iteration.
func (w WeightVector) SortedDimensions() []Dimension {
	dims := make([]Dimension, 0, len(w))
	for d := range w {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	return dims
}

// DimensionScore is one axis of a match: a value in [0,1], the weight it
// carried in the global score, and a short human-readable explanation.
type DimensionScore struct {
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Explanation string  `json:"explanation,omitempty"`
}

// MatchResult is one scored job for one candidate.
type MatchResult struct {
	JobID         string                       `json:"job_id"`
	Title         string                       `json:"title"`
	GlobalScore   int                          `json:"global_score"` // 0..100
	Dimensions    map[Dimension]DimensionScore `json:"per_dimension,omitempty"`
	Confidence    float64                      `json:"confidence"` // 0..1
	TravelInfo    *TravelResult                `json:"travel_info,omitempty"`
	AlgorithmUsed string                       `json:"algorithm_used"`
	FallbackUsed  bool                         `json:"fallback_used"`
	VariantScores map[string]int               `json:"variant_scores,omitempty"` // comparison mode only
}

// ClampScore forces a raw score into the 0..100 envelope.
func ClampScore(s float64) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(math.Round(s))
}

// Algorithm option values accepted by the orchestrator.
const (
	AlgoAuto          = "auto"
	AlgoSkills        = "skills"
	AlgoGeo           = "geo"
	AlgoEnhanced      = "enhanced"
	AlgoComprehensive = "comprehensive"
	AlgoComparison    = "comparison"
)

// MatchOptions tune one orchestrator invocation. Callers should start from a
// defaults-populated value and overlay request fields onto it, so absent JSON
// keys keep their defaults.
type MatchOptions struct {
	Algorithm        string  `json:"algorithm,omitempty"`
	Limit            int     `json:"limit,omitempty"`
	MinScore         float64 `json:"min_score"`
	Details          bool    `json:"details,omitempty"`
	Explanations     bool    `json:"explanations,omitempty"`
	TrackPerformance bool    `json:"track_performance,omitempty"`
	EnableFallback   bool    `json:"enable_fallback"`
}
