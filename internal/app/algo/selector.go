package algo

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matchd-io/matchd/internal/domain"
)

// Selection names the variant chosen for a request and the rule that fired.
type Selection struct {
	Variant Variant
	Rule    string
}

// Alternative describes one variant's applicability to a request, for the
// explain surface.
type Alternative struct {
	Name       string  `json:"name"`
	WouldWork  bool    `json:"would_work"`
	Confidence float64 `json:"confidence"`
}

// Explanation is the selector's rationale for a request.
type Explanation struct {
	Chosen       string        `json:"chosen"`
	RuleFired    string        `json:"rule_fired"`
	Alternatives []Alternative `json:"alternatives"`
}

// Selector picks a variant per request using a fixed rule order, and runs
// the configured subset concurrently in comparison mode.
type Selector struct {
	registry *Registry

	// comparison mode configuration
	compareNames   []string
	compareWeights []float64 // parallel to compareNames; empty means equal
}

// NewSelector creates a selector over the registry. compareNames is the
// variant subset executed in comparison mode (nil selects enhanced,
// geo-aware, comprehensive); compareWeights aggregates their scores (nil or
// mismatched lengths mean equal weights).
func NewSelector(registry *Registry, compareNames []string, compareWeights []float64) *Selector {
	if len(compareNames) == 0 {
		compareNames = []string{NameEnhanced, NameGeoAware, NameComprehensive}
	}
	if len(compareWeights) != len(compareNames) {
		compareWeights = nil
	}
	return &Selector{
		registry:       registry,
		compareNames:   compareNames,
		compareWeights: compareWeights,
	}
}

// rules is the fixed priority order: the first rule whose predicate holds
// wins, so richer variants claim requests before leaner ones.
var rules = []struct {
	name    string
	variant string
}{
	{"priorities with location or behavioral data", NameComprehensive},
	{"soft skills or culture present", NameEnhanced},
	{"locations on both sides with a remote stance", NameGeoAware},
	{"default", NameSkillsCentric},
}

// Select picks the variant for the request. The skills-centric variant is
// the terminal rule and claims anything canonical, so Select never fails on
// a request the canonicalizer accepted.
func (s *Selector) Select(req *Request) (Selection, error) {
	for _, rule := range rules {
		v, ok := s.registry.Get(rule.variant)
		if !ok {
			continue
		}
		if v.Supports(req) {
			return Selection{Variant: v, Rule: rule.name}, nil
		}
	}
	return Selection{}, fmt.Errorf("select variant: %w", domain.ErrUnknownAlgorithm)
}

// Explain returns the selection rationale plus every registered variant's
// claim on the request.
func (s *Selector) Explain(req *Request) (Explanation, error) {
	sel, err := s.Select(req)
	if err != nil {
		return Explanation{}, err
	}

	ex := Explanation{Chosen: sel.Variant.Name(), RuleFired: sel.Rule}
	for _, name := range s.registry.Names() {
		v, _ := s.registry.Get(name)
		ex.Alternatives = append(ex.Alternatives, Alternative{
			Name:       name,
			WouldWork:  v.Supports(req),
			Confidence: applicability(v, req),
		})
	}
	return ex, nil
}

// applicability estimates how much of the variant's weighted signal the
// request can actually feed: the base-weight mass of dimensions with usable
// data on both sides.
func applicability(v Variant, req *Request) float64 {
	if req.Candidate == nil || len(req.Jobs) == 0 {
		return 0
	}
	base := v.BaseWeights().Normalize()
	var covered float64
	for dim, w := range base {
		if dimensionFed(dim, req) {
			covered += w
		}
	}
	return math.Round(covered*100) / 100
}

func dimensionFed(dim domain.Dimension, req *Request) bool {
	c := req.Candidate
	switch dim {
	case domain.DimSkills:
		return len(c.Skills) > 0
	case domain.DimExperience:
		return c.YearsExperience > 0 || anyJob(req, func(j *domain.JobPosting) bool { return j.HasExperienceRequirement() })
	case domain.DimSalary:
		return c.SalaryExpectation > 0 && anyJob(req, func(j *domain.JobPosting) bool { return !j.SalaryBand.IsZero() })
	case domain.DimProximity:
		return c.Location != "" && anyJob(req, func(j *domain.JobPosting) bool { return j.Location != "" || j.IsRemote() })
	case domain.DimFlexibility:
		return c.RemotePreference != domain.RemoteUnspecified || c.WantsFlexibleHours || c.WantsRTT
	case domain.DimCulture:
		return len(c.Values) > 0 || len(c.CulturePreferences) > 0 || len(c.SoftSkills) > 0
	case domain.DimContract:
		return len(c.ContractTypes) > 0
	default:
		return false
	}
}

func anyJob(req *Request, pred func(*domain.JobPosting) bool) bool {
	for _, j := range req.Jobs {
		if pred(j) {
			return true
		}
	}
	return false
}

// ─── Comparison mode ────────────────────────────────────────────────────────

// ComparisonName tags aggregated results in envelopes and metrics.
const ComparisonName = "comparison"

// CompareVariants returns the variants the selector runs in comparison mode
// and their aggregation weights, normalized to sum to one. Unregistered
// names are skipped.
func (s *Selector) CompareVariants() ([]Variant, []float64) {
	var variants []Variant
	var ws []float64
	for i, name := range s.compareNames {
		v, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		variants = append(variants, v)
		if s.compareWeights != nil {
			ws = append(ws, s.compareWeights[i])
		} else {
			ws = append(ws, 1)
		}
	}
	var sum float64
	for _, w := range ws {
		sum += w
	}
	if sum <= 0 {
		for i := range ws {
			ws[i] = 1 / float64(len(ws))
		}
		return variants, ws
	}
	for i := range ws {
		ws[i] /= sum
	}
	return variants, ws
}

// Compare runs the configured variant subset concurrently and aggregates
// per-job scores by weighted mean. Each aggregated result keeps the
// per-variant scores for diagnostics and the dimension detail of the
// heaviest-weighted variant that scored the job.
func (s *Selector) Compare(ctx context.Context, req *Request, weights domain.WeightVector, limit int) ([]domain.MatchResult, error) {
	variants, aggWeights := s.CompareVariants()
	if len(variants) == 0 {
		return nil, fmt.Errorf("comparison mode: %w", domain.ErrUnknownAlgorithm)
	}

	var mu sync.Mutex
	byVariant := make(map[string][]domain.MatchResult, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range variants {
		v := v // per-iteration copy for the goroutine under pre-1.22 loop semantics
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = domain.Classify(domain.KindAlgorithmFault, fmt.Errorf("%s: panic: %v", v.Name(), r))
				}
			}()
			// zero limit: every job must be scored before aggregation
			results, err := v.Match(gctx, req, weights, 0)
			if err != nil {
				return fmt.Errorf("%s: %w", v.Name(), err)
			}
			mu.Lock()
			byVariant[v.Name()] = results
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregate(req, variants, aggWeights, byVariant, limit), nil
}

func aggregate(req *Request, variants []Variant, aggWeights []float64, byVariant map[string][]domain.MatchResult, limit int) []domain.MatchResult {
	type partial struct {
		weighted float64
		mass     float64
		perName  map[string]int
		detail   *domain.MatchResult // heaviest variant's record
		detailW  float64
	}
	parts := make(map[string]*partial, len(req.Jobs))

	for i, v := range variants {
		w := aggWeights[i]
		for _, r := range byVariant[v.Name()] {
			r := r // per-iteration copy: &r below is retained past the iteration
			p, ok := parts[r.JobID]
			if !ok {
				p = &partial{perName: make(map[string]int, len(variants)), detailW: -1}
				parts[r.JobID] = p
			}
			p.weighted += float64(r.GlobalScore) * w
			p.mass += w
			p.perName[v.Name()] = r.GlobalScore
			if w > p.detailW {
				p.detailW = w
				p.detail = &r
			}
		}
	}

	results := make([]domain.MatchResult, 0, len(parts))
	for _, job := range req.Jobs {
		p, ok := parts[job.ID]
		if !ok || p.mass <= 0 {
			continue
		}
		agg := *p.detail
		agg.GlobalScore = domain.ClampScore(p.weighted / p.mass)
		agg.AlgorithmUsed = ComparisonName
		agg.VariantScores = p.perName
		results = append(results, agg)
	}
	return finish(results, limit)
}
