package algo

import (
	"context"

	"github.com/matchd-io/matchd/internal/app/scoring"
	"github.com/matchd-io/matchd/internal/domain"
)

// Variant names as they appear in results and the registry.
const (
	NameSkillsCentric = "skills-centric"
	NameGeoAware      = "geo-aware"
	NameEnhanced      = "enhanced"
	NameComprehensive = "comprehensive"
)

// mobileBonus is added to the global score of location-aware variants when
// the candidate is willing to relocate.
const mobileBonus = 10

// ─── Skills-centric ─────────────────────────────────────────────────────────

// SkillsCentric matches on skills, contract, and experience only. It is the
// floor variant and claims any canonical request.
type SkillsCentric struct {
	syn *scoring.Synonyms
}

// NewSkillsCentric creates the skills-centric variant.
func NewSkillsCentric(syn *scoring.Synonyms) *SkillsCentric {
	return &SkillsCentric{syn: syn}
}

func (v *SkillsCentric) Name() string { return NameSkillsCentric }

func (v *SkillsCentric) Supports(req *Request) bool {
	return req.Candidate != nil && len(req.Jobs) > 0
}

func (v *SkillsCentric) BaseWeights() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:     0.60,
		domain.DimContract:   0.20,
		domain.DimExperience: 0.20,
	}
}

func (v *SkillsCentric) Match(_ context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	w := restrict(weights, domain.DimSkills, domain.DimContract, domain.DimExperience)
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		dims := zeroDimensions()
		dims[domain.DimSkills] = weighted(scoring.Skills(req.Candidate, job, v.syn), w[domain.DimSkills])
		dims[domain.DimContract] = weighted(scoring.Contract(req.Candidate, job), w[domain.DimContract])
		dims[domain.DimExperience] = weighted(scoring.Experience(req.Candidate, job), w[domain.DimExperience])
		results = append(results, domain.MatchResult{
			JobID:         job.ID,
			Title:         job.Title,
			GlobalScore:   domain.ClampScore(compose(dims)),
			Dimensions:    dims,
			AlgorithmUsed: v.Name(),
		})
	}
	return finish(results, limit), nil
}

// ─── Geo-aware ──────────────────────────────────────────────────────────────

// GeoAware weighs commute and remote fit alongside skills. It consults the
// travel provider for located pairs.
type GeoAware struct {
	syn *scoring.Synonyms
	tp  domain.TravelProvider
}

// NewGeoAware creates the geo-aware variant.
func NewGeoAware(syn *scoring.Synonyms, tp domain.TravelProvider) *GeoAware {
	return &GeoAware{syn: syn, tp: tp}
}

func (v *GeoAware) Name() string { return NameGeoAware }

func (v *GeoAware) Supports(req *Request) bool {
	if req.Candidate == nil || req.Candidate.Location == "" {
		return false
	}
	for _, j := range req.Jobs {
		if j.Location != "" || j.IsRemote() {
			return true
		}
	}
	return false
}

func (v *GeoAware) BaseWeights() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:      0.35,
		domain.DimProximity:   0.35,
		domain.DimContract:    0.15,
		domain.DimFlexibility: 0.15,
	}
}

func (v *GeoAware) Match(ctx context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	w := restrict(weights, domain.DimSkills, domain.DimProximity, domain.DimContract, domain.DimFlexibility)
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		dims := zeroDimensions()
		dims[domain.DimSkills] = weighted(scoring.Skills(req.Candidate, job, v.syn), w[domain.DimSkills])
		prox, travel := scoring.Proximity(ctx, req.Candidate, job, v.tp)
		dims[domain.DimProximity] = weighted(prox, w[domain.DimProximity])
		dims[domain.DimContract] = weighted(scoring.Contract(req.Candidate, job), w[domain.DimContract])
		dims[domain.DimFlexibility] = weighted(scoring.Flexibility(req.Candidate, job), w[domain.DimFlexibility])

		raw := compose(dims)
		if req.Candidate.Mobile {
			raw += mobileBonus
		}
		results = append(results, domain.MatchResult{
			JobID:         job.ID,
			Title:         job.Title,
			GlobalScore:   domain.ClampScore(raw),
			Dimensions:    dims,
			TravelInfo:    travel,
			AlgorithmUsed: v.Name(),
		})
	}
	return finish(results, limit), nil
}

// ─── Enhanced ───────────────────────────────────────────────────────────────

// Enhanced adds behavioral fit: salary, culture, soft skills, flexibility.
// Soft-skill affinity blends into the culture dimension.
type Enhanced struct {
	syn *scoring.Synonyms
}

// NewEnhanced creates the enhanced variant.
func NewEnhanced(syn *scoring.Synonyms) *Enhanced {
	return &Enhanced{syn: syn}
}

func (v *Enhanced) Name() string { return NameEnhanced }

func (v *Enhanced) Supports(req *Request) bool {
	if req.Candidate == nil {
		return false
	}
	if len(req.Candidate.SoftSkills) > 0 || len(req.Candidate.Values) > 0 ||
		len(req.Candidate.CulturePreferences) > 0 || req.Candidate.HasPriorities() {
		return true
	}
	for _, j := range req.Jobs {
		if len(j.DesiredSoftSkills) > 0 || len(j.CompanyCulture) > 0 {
			return true
		}
	}
	return false
}

func (v *Enhanced) BaseWeights() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:      0.35,
		domain.DimExperience:  0.20,
		domain.DimSalary:      0.25,
		domain.DimCulture:     0.10,
		domain.DimFlexibility: 0.10,
	}
}

func (v *Enhanced) Match(_ context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	w := restrict(weights, domain.DimSkills, domain.DimExperience, domain.DimSalary,
		domain.DimCulture, domain.DimFlexibility)
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		dims := zeroDimensions()
		dims[domain.DimSkills] = weighted(scoring.Skills(req.Candidate, job, v.syn), w[domain.DimSkills])
		dims[domain.DimExperience] = weighted(scoring.Experience(req.Candidate, job), w[domain.DimExperience])
		dims[domain.DimSalary] = weighted(scoring.Salary(req.Candidate, job), w[domain.DimSalary])
		dims[domain.DimCulture] = weighted(cultureFit(req.Candidate, job), w[domain.DimCulture])
		dims[domain.DimFlexibility] = weighted(scoring.Flexibility(req.Candidate, job), w[domain.DimFlexibility])
		results = append(results, domain.MatchResult{
			JobID:         job.ID,
			Title:         job.Title,
			GlobalScore:   domain.ClampScore(compose(dims)),
			Dimensions:    dims,
			AlgorithmUsed: v.Name(),
		})
	}
	return finish(results, limit), nil
}

// cultureFit averages value overlap with soft-skill overlap when the posting
// states desired soft skills; otherwise plain culture.
func cultureFit(c *domain.Candidate, j *domain.JobPosting) domain.DimensionScore {
	culture := scoring.Culture(c, j)
	if len(j.DesiredSoftSkills) == 0 {
		return culture
	}
	soft := scoring.SoftSkills(c, j)
	return domain.DimensionScore{
		Value:       (culture.Value + soft.Value) / 2,
		Explanation: culture.Explanation + "; " + soft.Explanation,
	}
}

// ─── Comprehensive ──────────────────────────────────────────────────────────

// Comprehensive scores every dimension, consults the travel provider, and
// grants capped intelligence bonuses for structured career signals.
type Comprehensive struct {
	syn     *scoring.Synonyms
	tp      domain.TravelProvider
	bonuses BonusConfig
}

// NewComprehensive creates the comprehensive variant.
func NewComprehensive(syn *scoring.Synonyms, tp domain.TravelProvider, bonuses BonusConfig) *Comprehensive {
	return &Comprehensive{syn: syn, tp: tp, bonuses: bonuses}
}

func (v *Comprehensive) Name() string { return NameComprehensive }

func (v *Comprehensive) Supports(req *Request) bool {
	if req.Candidate == nil || !req.Candidate.HasPriorities() {
		return false
	}
	return req.Candidate.Location != "" || len(req.Candidate.SoftSkills) > 0 ||
		len(req.Candidate.Values) > 0 || len(req.Candidate.CulturePreferences) > 0
}

func (v *Comprehensive) BaseWeights() domain.WeightVector {
	return domain.WeightVector{
		domain.DimSkills:      0.25,
		domain.DimExperience:  0.15,
		domain.DimSalary:      0.20,
		domain.DimProximity:   0.15,
		domain.DimFlexibility: 0.10,
		domain.DimCulture:     0.075,
		domain.DimContract:    0.075,
	}
}

func (v *Comprehensive) Match(ctx context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	w := restrict(weights, domain.Dimensions()...)
	results := make([]domain.MatchResult, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		dims := zeroDimensions()
		skills := scoring.Skills(req.Candidate, job, v.syn)
		dims[domain.DimSkills] = weighted(skills, w[domain.DimSkills])
		dims[domain.DimExperience] = weighted(scoring.Experience(req.Candidate, job), w[domain.DimExperience])
		dims[domain.DimSalary] = weighted(scoring.Salary(req.Candidate, job), w[domain.DimSalary])
		prox, travel := scoring.Proximity(ctx, req.Candidate, job, v.tp)
		dims[domain.DimProximity] = weighted(prox, w[domain.DimProximity])
		dims[domain.DimFlexibility] = weighted(scoring.Flexibility(req.Candidate, job), w[domain.DimFlexibility])
		dims[domain.DimCulture] = weighted(cultureFit(req.Candidate, job), w[domain.DimCulture])
		dims[domain.DimContract] = weighted(scoring.Contract(req.Candidate, job), w[domain.DimContract])

		raw := compose(dims)
		bonus, notes := v.bonuses.Detect(req.Candidate, job, v.syn)
		raw += bonus
		if req.Candidate.Mobile {
			raw += mobileBonus
		}
		if len(notes) > 0 {
			skills = dims[domain.DimSkills]
			skills.Explanation = joinNotes(skills.Explanation, notes)
			dims[domain.DimSkills] = skills
		}
		results = append(results, domain.MatchResult{
			JobID:         job.ID,
			Title:         job.Title,
			GlobalScore:   domain.ClampScore(raw),
			Dimensions:    dims,
			TravelInfo:    travel,
			AlgorithmUsed: v.Name(),
		})
	}
	return finish(results, limit), nil
}

func joinNotes(base string, notes []string) string {
	out := base
	for _, n := range notes {
		if out == "" {
			out = n
			continue
		}
		out += "; " + n
	}
	return out
}
