// Package engine orchestrates one match end to end: canonicalize the raw
// records, resolve the weight vector, pick a variant, execute it, and shape
// the response envelope. Failures past canonicalization are absorbed by the
// fallback chain instead of reaching callers.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/app/algo"
	"github.com/matchd-io/matchd/internal/app/canon"
	"github.com/matchd-io/matchd/internal/app/weights"
	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Envelope statuses. Fallback means results were produced by a degraded
// tier; error means the pipeline produced nothing usable.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"
)

// Meta summarizes a response.
type Meta struct {
	TotalOffers   int     `json:"total_offers"`
	Returned      int     `json:"returned"`
	AvgScore      float64 `json:"avg_score"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Response is the envelope every matching surface returns.
type Response struct {
	Status        string               `json:"status"`
	AlgorithmUsed string               `json:"algorithm_used"`
	ExecutionTime float64              `json:"execution_time_s"`
	Results       []domain.MatchResult `json:"results"`
	Meta          Meta                 `json:"meta"`
	Errors        []string             `json:"errors,omitempty"`
}

// Config bounds request options and carries the comparison-mode base vector.
type Config struct {
	DefaultLimit    int
	LimitCap        int
	DefaultMinScore float64
	// BaseWeights seeds the weight resolver in comparison mode, where one
	// vector feeds every variant. Nil uses the stock distribution.
	BaseWeights domain.WeightVector
}

// DefaultConfig returns the stock engine bounds.
func DefaultConfig() Config {
	return Config{DefaultLimit: 10, LimitCap: 50, DefaultMinScore: 0.6}
}

// Engine runs the matching pipeline.
type Engine struct {
	registry *algo.Registry
	selector *algo.Selector
	cfg      Config
	log      *zap.Logger
}

// New creates an engine over the registry and selector.
func New(registry *algo.Registry, selector *algo.Selector, cfg Config, log *zap.Logger) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.LimitCap <= 0 {
		cfg.LimitCap = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		selector: selector,
		cfg:      cfg,
		log:      log.Named("engine"),
	}
}

// DefaultOptions is the value request options overlay onto, so absent JSON
// keys keep their configured defaults.
func (e *Engine) DefaultOptions() domain.MatchOptions {
	return domain.MatchOptions{
		Algorithm:      domain.AlgoAuto,
		Limit:          e.cfg.DefaultLimit,
		MinScore:       e.cfg.DefaultMinScore,
		EnableFallback: true,
	}
}

// ─── Match pipeline ─────────────────────────────────────────────────────────

// Match scores candidateRaw against jobsRaw and assembles the envelope.
// It returns an error only when the input fails canonicalization or names an
// unknown algorithm; every later failure is expressed in the envelope,
// through the fallback chain when enabled.
func (e *Engine) Match(ctx context.Context, candidateRaw map[string]any, jobsRaw []map[string]any, opts domain.MatchOptions) (*Response, error) {
	start := time.Now()

	req, err := e.canonical(candidateRaw, jobsRaw)
	if err != nil {
		return nil, err
	}
	opts = e.bound(opts)

	p, err := e.plan(req, opts)
	if err != nil {
		return nil, domain.Classify(domain.KindInvalidInput, err)
	}
	e.log.Debug("variant selected",
		zap.String("algorithm", p.name()),
		zap.String("rule", p.rule),
		zap.Int("jobs", len(req.Jobs)))

	results, execErr := e.executePlan(ctx, p, req)

	var tier algo.Degraded
	if execErr != nil {
		if !opts.EnableFallback {
			return e.complete(e.errorEnvelope(req, execErr), opts, start), nil
		}
		results, tier, err = e.fallback(ctx, req, execErr)
		if err != nil {
			return e.complete(e.errorEnvelope(req, err), opts, start), nil
		}
	}

	final := e.postProcess(results, opts, p.comparison && tier == nil, tier)

	resp := &Response{
		Status:        StatusSuccess,
		AlgorithmUsed: p.name(),
		Results:       final,
		Meta:          buildMeta(len(req.Jobs), final),
	}
	if tier != nil {
		resp.Status = StatusFallback
		resp.AlgorithmUsed = tier.Name()
		resp.Errors = []string{execErr.Error()}
	}
	return e.complete(resp, opts, start), nil
}

// Explain returns the selector's rationale for the request without scoring.
func (e *Engine) Explain(candidateRaw map[string]any, jobsRaw []map[string]any) (algo.Explanation, error) {
	req, err := e.canonical(candidateRaw, jobsRaw)
	if err != nil {
		return algo.Explanation{}, err
	}
	return e.selector.Explain(req)
}

// Capability describes one registered variant for the listing surfaces.
type Capability struct {
	Name       string   `json:"name"`
	Dimensions []string `json:"dimensions"`
	Fallback   bool     `json:"fallback"`
}

// Algorithms lists registered variants, their scored dimensions, and whether
// they belong to the degraded family.
func (e *Engine) Algorithms() []Capability {
	names := e.registry.Names()
	out := make([]Capability, 0, len(names))
	for _, n := range names {
		v, _ := e.registry.Get(n)
		dims := v.BaseWeights().SortedDimensions()
		strs := make([]string, len(dims))
		for i, d := range dims {
			strs[i] = string(d)
		}
		_, degraded := v.(algo.Degraded)
		out = append(out, Capability{Name: n, Dimensions: strs, Fallback: degraded})
	}
	return out
}

// ─── Pipeline stages ────────────────────────────────────────────────────────

func (e *Engine) canonical(candidateRaw map[string]any, jobsRaw []map[string]any) (*algo.Request, error) {
	cand, err := canon.Candidate(candidateRaw)
	if err != nil {
		return nil, domain.Classify(domain.KindInvalidInput, err)
	}
	jobs, err := canon.Jobs(jobsRaw)
	if err != nil {
		return nil, domain.Classify(domain.KindInvalidInput, err)
	}
	if len(jobs) == 0 {
		return nil, domain.Classify(domain.KindInvalidInput, domain.ErrNoJobs)
	}
	req := &algo.Request{Candidate: &cand, Jobs: make([]*domain.JobPosting, len(jobs))}
	for i := range jobs {
		req.Jobs[i] = &jobs[i]
	}
	return req, nil
}

// bound clamps request options into the configured envelope.
func (e *Engine) bound(opts domain.MatchOptions) domain.MatchOptions {
	if opts.Algorithm == "" {
		opts.Algorithm = domain.AlgoAuto
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if opts.Limit > e.cfg.LimitCap {
		opts.Limit = e.cfg.LimitCap
	}
	if opts.MinScore < 0 {
		opts.MinScore = 0
	}
	if opts.MinScore > 1 {
		opts.MinScore = 1
	}
	return opts
}

// plan is the execution decision for one request: a single variant or
// comparison mode.
type plan struct {
	variant    algo.Variant
	rule       string
	comparison bool
}

func (p plan) name() string {
	if p.comparison {
		return algo.ComparisonName
	}
	return p.variant.Name()
}

func (e *Engine) plan(req *algo.Request, opts domain.MatchOptions) (plan, error) {
	switch opts.Algorithm {
	case domain.AlgoAuto:
		sel, err := e.selector.Select(req)
		if err != nil {
			return plan{}, err
		}
		return plan{variant: sel.Variant, rule: sel.Rule}, nil
	case domain.AlgoComparison:
		return plan{comparison: true, rule: "comparison requested"}, nil
	}

	name := opts.Algorithm
	switch opts.Algorithm {
	case domain.AlgoSkills:
		name = algo.NameSkillsCentric
	case domain.AlgoGeo:
		name = algo.NameGeoAware
	case domain.AlgoEnhanced:
		name = algo.NameEnhanced
	case domain.AlgoComprehensive:
		name = algo.NameComprehensive
	}
	v, ok := e.registry.Get(name)
	if !ok {
		return plan{}, fmt.Errorf("%q: %w", opts.Algorithm, domain.ErrUnknownAlgorithm)
	}
	return plan{variant: v, rule: "forced by request options"}, nil
}

func (e *Engine) executePlan(ctx context.Context, p plan, req *algo.Request) ([]domain.MatchResult, error) {
	base := e.cfg.BaseWeights
	if p.comparison {
		if len(base) == 0 {
			base = weights.DefaultBase()
		}
	} else {
		base = p.variant.BaseWeights()
	}
	w, err := weights.Resolve(base, req.Candidate.Priorities)
	if err != nil {
		return nil, domain.Classify(domain.KindAlgorithmFault, err)
	}
	if p.comparison {
		return e.selector.Compare(ctx, req, w, 0)
	}
	return e.execute(ctx, p.variant, req, w)
}

// execute runs one variant with panic containment, so a faulting strategy
// degrades instead of killing the worker.
func (e *Engine) execute(ctx context.Context, v algo.Variant, req *algo.Request, w domain.WeightVector) (results []domain.MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.Classify(domain.KindAlgorithmFault, fmt.Errorf("variant %s: panic: %v", v.Name(), r))
		}
	}()
	return v.Match(ctx, req, w, 0)
}

// fallback walks the degradation chain for the failure class until a tier
// produces results. The emergency tier cannot fail, so this only errors when
// the registry is missing the degraded family.
func (e *Engine) fallback(ctx context.Context, req *algo.Request, cause error) ([]domain.MatchResult, algo.Degraded, error) {
	kind := domain.KindOf(cause)
	metrics.FallbackActivations.WithLabelValues(string(kind)).Inc()
	e.log.Warn("variant failed, entering fallback chain",
		zap.String("kind", string(kind)),
		zap.Error(cause))

	for _, name := range algo.FallbackChain(kind) {
		v, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		tier, ok := v.(algo.Degraded)
		if !ok {
			continue
		}
		results, err := e.execute(ctx, tier, req, tier.BaseWeights().Normalize())
		if err != nil {
			e.log.Warn("fallback tier failed", zap.String("tier", name), zap.Error(err))
			continue
		}
		e.log.Info("fallback tier answered", zap.String("tier", name), zap.Int("results", len(results)))
		return results, tier, nil
	}
	return nil, nil, cause
}

// postProcess finishes execution output: clamp, strip detail per options,
// compute confidence, degrade it on fallback tiers, filter by minimum score,
// and order by (score desc, confidence desc).
func (e *Engine) postProcess(results []domain.MatchResult, opts domain.MatchOptions, comparison bool, tier algo.Degraded) []domain.MatchResult {
	out := make([]domain.MatchResult, 0, len(results))
	for _, r := range results {
		r.GlobalScore = domain.ClampScore(float64(r.GlobalScore))

		if !opts.Details {
			r.Dimensions = nil
		} else if !opts.Explanations {
			r.Dimensions = stripExplanations(r.Dimensions)
		}

		conf := float64(r.GlobalScore) / 100
		if opts.Details {
			conf += 0.1
		}
		if opts.Explanations {
			conf += 0.05
		}
		if comparison {
			conf += 0.05
		}
		if conf > 1 {
			conf = 1
		}
		if tier != nil {
			conf = tier.Degrade(conf)
			r.FallbackUsed = true
		}
		r.Confidence = conf

		if float64(r.GlobalScore)/100 < opts.MinScore {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GlobalScore != out[j].GlobalScore {
			return out[i].GlobalScore > out[j].GlobalScore
		}
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// stripExplanations copies the dimension map with explanation text removed,
// leaving the shared input untouched.
func stripExplanations(dims map[domain.Dimension]domain.DimensionScore) map[domain.Dimension]domain.DimensionScore {
	if dims == nil {
		return nil
	}
	out := make(map[domain.Dimension]domain.DimensionScore, len(dims))
	for d, s := range dims {
		s.Explanation = ""
		out[d] = s
	}
	return out
}

func (e *Engine) errorEnvelope(req *algo.Request, cause error) *Response {
	return &Response{
		Status:        StatusError,
		AlgorithmUsed: "none",
		Results:       []domain.MatchResult{},
		Meta:          Meta{TotalOffers: len(req.Jobs)},
		Errors:        []string{cause.Error()},
	}
}

// complete stamps timing, records metrics, and logs the outcome.
func (e *Engine) complete(resp *Response, opts domain.MatchOptions, start time.Time) *Response {
	resp.ExecutionTime = time.Since(start).Seconds()

	metrics.MatchRequests.WithLabelValues(resp.AlgorithmUsed, resp.Status).Inc()
	if opts.TrackPerformance {
		metrics.MatchDuration.WithLabelValues(resp.AlgorithmUsed).Observe(resp.ExecutionTime)
		for _, r := range resp.Results {
			metrics.MatchScores.Observe(float64(r.GlobalScore))
		}
	}

	e.log.Debug("match complete",
		zap.String("status", resp.Status),
		zap.String("algorithm", resp.AlgorithmUsed),
		zap.Int("returned", resp.Meta.Returned),
		zap.Float64("execution_s", resp.ExecutionTime))
	return resp
}

func buildMeta(total int, results []domain.MatchResult) Meta {
	m := Meta{TotalOffers: total, Returned: len(results)}
	if len(results) == 0 {
		return m
	}
	var score, conf float64
	for _, r := range results {
		score += float64(r.GlobalScore)
		conf += r.Confidence
	}
	m.AvgScore = round2(score / float64(len(results)))
	m.AvgConfidence = round2(conf / float64(len(results)))
	return m
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
