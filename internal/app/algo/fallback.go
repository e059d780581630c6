package algo

import (
	"context"
	"strings"

	"github.com/matchd-io/matchd/internal/domain"
)

// Fallback family names, in degradation order.
const (
	NameSimple      = "simple"
	NameKeyword     = "keyword"
	NameStatistical = "statistical"
	NameEmergency   = "emergency"
)

// fallbackOrder is the full degradation sequence.
var fallbackOrder = []string{NameSimple, NameKeyword, NameStatistical, NameEmergency}

// FallbackChain returns the degradation sequence to walk for an error class.
// Transient external failures skip straight to keyword matching; data faults
// discovered inside a variant enter at statistical. Everything ends at
// emergency, which cannot fail.
func FallbackChain(kind domain.Kind) []string {
	switch kind {
	case domain.KindTransientExternal:
		return fallbackOrder[1:]
	case domain.KindInvalidInput:
		return fallbackOrder[2:]
	default:
		return fallbackOrder
	}
}

func fallbackResult(name string, job *domain.JobPosting, dims map[domain.Dimension]domain.DimensionScore, raw float64) domain.MatchResult {
	return domain.MatchResult{
		JobID:         job.ID,
		Title:         job.Title,
		GlobalScore:   domain.ClampScore(raw),
		Dimensions:    dims,
		AlgorithmUsed: name,
		FallbackUsed:  true,
	}
}

// exactCoverage is the degraded skill score: exact token intersection, no
// synonym table, with the usual empty-set edges.
func exactCoverage(skills, required []string) float64 {
	if len(required) == 0 {
		return 0.5
	}
	if len(skills) == 0 {
		return 0.2
	}
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		set[s] = true
	}
	m := 0
	for _, r := range required {
		if set[r] {
			m++
		}
	}
	return float64(m) / float64(len(required))
}

// ─── Simple ─────────────────────────────────────────────────────────────────

// Simple scores exact skill coverage and nothing else.
type Simple struct{}

func (Simple) Name() string              { return NameSimple }
func (Simple) Supports(*Request) bool    { return true }
func (Simple) Degrade(c float64) float64 { return 0.8 * c }
func (Simple) BaseWeights() domain.WeightVector {
	return domain.WeightVector{domain.DimSkills: 1}
}

func (Simple) Match(_ context.Context, req *Request, _ domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		value := exactCoverage(req.Candidate.Skills, job.RequiredSkills)
		dims := zeroDimensions()
		dims[domain.DimSkills] = domain.DimensionScore{Value: value, Weight: 1, Explanation: "exact skill coverage"}
		results = append(results, fallbackResult(NameSimple, job, dims, value*100))
	}
	return finish(results, limit), nil
}

// ─── Keyword ────────────────────────────────────────────────────────────────

// Keyword searches candidate skills in the posting's title and requirements.
type Keyword struct{}

func (Keyword) Name() string              { return NameKeyword }
func (Keyword) Supports(*Request) bool    { return true }
func (Keyword) Degrade(c float64) float64 { return 0.75 * c }
func (Keyword) BaseWeights() domain.WeightVector {
	return domain.WeightVector{domain.DimSkills: 1}
}

func (Keyword) Match(_ context.Context, req *Request, _ domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		value := keywordHits(req.Candidate.Skills, job)
		dims := zeroDimensions()
		dims[domain.DimSkills] = domain.DimensionScore{Value: value, Weight: 1, Explanation: "keyword hits in title and requirements"}
		results = append(results, fallbackResult(NameKeyword, job, dims, value*100))
	}
	return finish(results, limit), nil
}

func keywordHits(skills []string, job *domain.JobPosting) float64 {
	if len(skills) == 0 {
		return 0.2
	}
	keywords := make(map[string]bool, len(job.RequiredSkills)+4)
	for _, r := range job.RequiredSkills {
		keywords[r] = true
	}
	for _, tok := range strings.Fields(strings.ToLower(job.Title)) {
		keywords[tok] = true
	}
	hits := 0
	for _, s := range skills {
		if keywords[s] {
			hits++
		}
	}
	denom := len(job.RequiredSkills)
	if denom == 0 {
		denom = len(skills)
	}
	value := float64(hits) / float64(denom)
	if value > 1 {
		value = 1
	}
	return value
}

// ─── Statistical ────────────────────────────────────────────────────────────

// Statistical blends cheap canonical comparisons around a population prior.
type Statistical struct{}

func (Statistical) Name() string              { return NameStatistical }
func (Statistical) Supports(*Request) bool    { return true }
func (Statistical) Degrade(c float64) float64 { return 0.7 * c }
func (Statistical) BaseWeights() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:     0.4,
		domain.DimExperience: 0.2,
		domain.DimContract:   0.1,
	}
}

func (Statistical) Match(_ context.Context, req *Request, _ domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		dims := zeroDimensions()
		dims[domain.DimSkills] = domain.DimensionScore{
			Value: exactCoverage(req.Candidate.Skills, job.RequiredSkills), Weight: 0.4,
			Explanation: "exact skill coverage",
		}
		dims[domain.DimExperience] = domain.DimensionScore{
			Value: roughExperienceFit(req.Candidate, job), Weight: 0.2,
			Explanation: "rough seniority fit",
		}
		dims[domain.DimContract] = domain.DimensionScore{
			Value: roughContractFit(req.Candidate, job), Weight: 0.1,
			Explanation: "contract compatibility",
		}
		// a 0.3 prior keeps degraded answers out of the gutter
		results = append(results, fallbackResult(NameStatistical, job, dims, 30+compose(dims)))
	}
	return finish(results, limit), nil
}

func roughExperienceFit(c *domain.Candidate, j *domain.JobPosting) float64 {
	if !j.HasExperienceRequirement() || c.YearsExperience >= j.ExperienceMin {
		return 1
	}
	if j.ExperienceMin <= 0 {
		return 1
	}
	return c.YearsExperience / j.ExperienceMin
}

func roughContractFit(c *domain.Candidate, j *domain.JobPosting) float64 {
	if len(c.ContractTypes) == 0 || j.ContractType == "" {
		return 1
	}
	if c.AcceptsContract(j.ContractType) {
		return 1
	}
	return 0
}

// ─── Emergency ──────────────────────────────────────────────────────────────

// engineeringTitleTokens flag postings the emergency tier nudges upward.
var engineeringTitleTokens = []string{
	"engineer", "developer", "software", "ingénieur", "développeur", "dev",
}

// Emergency is the tier of last resort: a deterministic baseline that never
// fails and answers for every input job.
type Emergency struct{}

func (Emergency) Name() string            { return NameEmergency }
func (Emergency) Supports(*Request) bool  { return true }
func (Emergency) Degrade(float64) float64 { return 0.3 }
func (Emergency) BaseWeights() domain.WeightVector {
	return domain.WeightVector{domain.DimSkills: 1}
}

func (Emergency) Match(_ context.Context, req *Request, _ domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		score := 50.0
		title := strings.ToLower(job.Title)
		for _, tok := range engineeringTitleTokens {
			if strings.Contains(title, tok) {
				score += 10
				break
			}
		}
		results = append(results, fallbackResult(NameEmergency, job, zeroDimensions(), score))
	}
	return finish(results, limit), nil
}
