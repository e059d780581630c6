package travel

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
	"github.com/matchd-io/matchd/internal/infra/resilience"
)

// Mode selects which resolution paths are active.
type Mode string

const (
	ModeReal      Mode = "real"      // external API only
	ModeSimulated Mode = "simulated" // estimator only
	ModeHybrid    Mode = "hybrid"    // API first, estimator on failure
)

// ParseMode maps a config string onto a Mode, defaulting to hybrid.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "real":
		return ModeReal
	case "simulated", "simulation", "sim":
		return ModeSimulated
	default:
		return ModeHybrid
	}
}

// Config configures the provider.
type Config struct {
	Mode          Mode
	CacheTTL      time.Duration
	CacheSize     int
	MaxConcurrent int64 // in-flight external calls
	Breaker       resilience.BreakerConfig
	Retry         resilience.RetryPolicy
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeHybrid,
		CacheTTL:      time.Hour,
		CacheSize:     4096,
		MaxConcurrent: 8,
		Breaker:       resilience.DefaultBreakerConfig(),
		Retry:         resilience.DefaultRetryPolicy(),
	}
}

// Provider resolves travel queries through a cache, the external routing
// API, and the simulator, in that order. In hybrid mode it always answers.
// Implements domain.TravelProvider.
type Provider struct {
	mode    Mode
	api     domain.TravelProvider
	sim     domain.TravelProvider
	cache   *Cache
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	group   singleflight.Group
	sem     *semaphore.Weighted
	log     *zap.Logger
}

// NewProvider wires the resolution chain. api may be nil when no external
// client is configured; sim may be nil in real-only setups.
func NewProvider(cfg Config, api, sim domain.TravelProvider, log *zap.Logger) *Provider {
	def := DefaultConfig()
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		mode:    cfg.Mode,
		api:     api,
		sim:     sim,
		cache:   NewCache(cfg.CacheSize, cfg.CacheTTL),
		breaker: resilience.NewBreaker("routing-api", cfg.Breaker),
		retry:   cfg.Retry,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		log:     log.Named("travel"),
	}
}

// Mode returns the active resolution mode.
func (p *Provider) Mode() Mode { return p.mode }

// BreakerSnapshot exposes the routing breaker state for health reporting.
func (p *Provider) BreakerSnapshot() resilience.BreakerSnapshot {
	return p.breaker.Snapshot()
}

// Route serves a travel query. Concurrent identical queries share one
// resolution; results land in the cache for the TTL. ErrTravelUnavailable
// is returned only when every path is disabled.
func (p *Provider) Route(ctx context.Context, q domain.TravelQuery) (domain.TravelResult, error) {
	if res, ok := p.cache.Get(q); ok {
		return res, nil
	}

	v, err, _ := p.group.Do(q.CacheKey(), func() (any, error) {
		return p.resolve(ctx, q)
	})
	if err != nil {
		return domain.TravelResult{}, err
	}
	return v.(domain.TravelResult), nil
}

func (p *Provider) resolve(ctx context.Context, q domain.TravelQuery) (domain.TravelResult, error) {
	if p.useAPI() {
		res, err := p.fromAPI(ctx, q)
		if err == nil {
			metrics.TravelLookups.WithLabelValues(string(domain.TravelSourceAPI)).Inc()
			p.cache.Put(q, res)
			return res, nil
		}
		if !p.useSim() {
			return domain.TravelResult{}, err
		}
		p.log.Debug("routing api failed, estimating",
			zap.String("origin", q.Origin),
			zap.String("destination", q.Destination),
			zap.Error(err))
	}

	if p.useSim() {
		res, err := p.sim.Route(ctx, q)
		if err != nil {
			return domain.TravelResult{}, err
		}
		metrics.TravelLookups.WithLabelValues(string(domain.TravelSourceSimulated)).Inc()
		p.cache.Put(q, res)
		return res, nil
	}

	return domain.TravelResult{}, domain.ErrTravelUnavailable
}

func (p *Provider) useAPI() bool { return p.mode != ModeSimulated && p.api != nil }
func (p *Provider) useSim() bool { return p.mode != ModeReal && p.sim != nil }

// fromAPI calls the external client behind the breaker, the concurrency
// cap, and the retry policy. Soft misses (no such route) neither trip nor
// reset the breaker.
func (p *Provider) fromAPI(ctx context.Context, q domain.TravelQuery) (domain.TravelResult, error) {
	if err := p.breaker.Allow(); err != nil {
		metrics.RoutingBreakerState.Set(float64(p.breaker.State()))
		return domain.TravelResult{}, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return domain.TravelResult{}, err
	}
	defer p.sem.Release(1)

	var res domain.TravelResult
	err := resilience.Retry(ctx, p.retry, func() error {
		r, rerr := p.api.Route(ctx, q)
		if rerr != nil {
			if domain.IsTransient(rerr) {
				p.breaker.RecordFailure()
			}
			return rerr
		}
		p.breaker.RecordSuccess()
		res = r
		return nil
	})
	metrics.RoutingBreakerState.Set(float64(p.breaker.State()))
	return res, err
}
