package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/matchd-io/matchd/internal/api"
	"github.com/matchd-io/matchd/internal/app/algo"
	"github.com/matchd-io/matchd/internal/app/engine"
	"github.com/matchd-io/matchd/internal/app/scoring"
	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/health"
	"github.com/matchd-io/matchd/internal/infra/directory"
	_ "github.com/matchd-io/matchd/internal/infra/metrics" // register prometheus collectors
	"github.com/matchd-io/matchd/internal/infra/queue"
	"github.com/matchd-io/matchd/internal/infra/resilience"
	"github.com/matchd-io/matchd/internal/infra/store"
	"github.com/matchd-io/matchd/internal/infra/travel"
)

// Daemon is the matchd runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Log       *zap.Logger
	Store     *store.Store
	Travel    *travel.Provider
	Synonyms  *scoring.Synonyms
	Engine    *engine.Engine
	Broker    *queue.Broker
	Workers   *queue.Pool
	Notifier  *queue.Notifier
	Directory *directory.FileDirectory
	Health    *health.Checker
	Server    *api.Server

	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	dataDir := matchdHome()

	st, err := store.Open(dataDir, store.Config{
		Driver:         cfg.Store.Driver,
		DSN:            cfg.Store.DSN,
		LargeThreshold: cfg.Store.LargeResultThresholdBytes,
		HotTTL:         seconds(cfg.Store.HotTTLSeconds),
		HotSize:        cfg.Store.HotSize,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	// The external routing client only joins when an API URL is configured;
	// the simulator always backs the provider.
	var routingAPI domain.TravelProvider
	if cfg.Travel.APIURL != "" {
		routingAPI = travel.NewClient(travel.ClientConfig{
			BaseURL:   cfg.Travel.APIURL,
			APIKey:    cfg.Travel.APIKey,
			Timeout:   seconds(cfg.Travel.TimeoutSeconds),
			RateLimit: rate.Limit(cfg.Travel.RateLimitRPS),
		}, log)
	}
	provider := travel.NewProvider(travel.Config{
		Mode:          travel.ParseMode(cfg.Travel.ProviderMode),
		CacheTTL:      seconds(cfg.Travel.CacheTTLSeconds),
		CacheSize:     cfg.Travel.CacheSize,
		MaxConcurrent: int64(cfg.Travel.MaxConcurrent),
		Breaker: resilience.BreakerConfig{
			FailMax:      cfg.Resilience.CircuitFailMax,
			ResetTimeout: seconds(cfg.Resilience.CircuitResetSeconds),
		},
		Retry: resilience.RetryPolicy{MaxRetries: cfg.Resilience.MaxRetries},
	}, routingAPI, travel.NewSimulator(), log)

	// Synonym table. The config threshold applies first so a threshold set
	// in the synonyms file wins.
	syn := scoring.DefaultSynonyms()
	if cfg.Scoring.SynonymThreshold > 0 {
		syn.SetThreshold(cfg.Scoring.SynonymThreshold)
	}
	if cfg.Scoring.SynonymsFile != "" {
		if err := syn.LoadFile(cfg.Scoring.SynonymsFile); err != nil {
			log.Warn("synonyms file not loaded",
				zap.String("path", cfg.Scoring.SynonymsFile),
				zap.Error(err))
		}
	}

	bonus := algo.DefaultBonusConfig()
	if cfg.Scoring.BonusCap > 0 {
		bonus.Cap = cfg.Scoring.BonusCap
	}
	if cfg.Scoring.BonusPoints > 0 {
		bonus.PerSignal = cfg.Scoring.BonusPoints
	}

	reg := algo.NewRegistry()
	reg.Register(algo.NewSkillsCentric(syn))
	reg.Register(algo.NewGeoAware(syn, provider))
	reg.Register(algo.NewEnhanced(syn))
	reg.Register(algo.NewComprehensive(syn, provider, bonus))
	reg.Register(algo.Simple{})
	reg.Register(algo.Keyword{})
	reg.Register(algo.Statistical{})
	reg.Register(algo.Emergency{})

	sel := algo.NewSelector(reg, cfg.Engine.ComparisonVariants, cfg.Engine.ComparisonWeights)
	eng := engine.New(reg, sel, engine.Config{
		DefaultLimit:    cfg.Engine.DefaultLimit,
		LimitCap:        cfg.Engine.LimitCap,
		DefaultMinScore: cfg.Engine.DefaultMinScore,
	}, log)

	maxDepth := cfg.Queue.MaxDepth
	if maxDepth <= 0 {
		maxDepth = queue.DefaultConfig().MaxDepth
	}
	broker := queue.NewBroker(queue.Config{
		MaxDepth:   maxDepth,
		ResultTTL:  seconds(cfg.Queue.ResultTTLSeconds),
		JobTimeout: seconds(cfg.Queue.JobTimeoutSeconds),
		MaxRetries: cfg.Resilience.MaxRetries,
	}, log)

	notifier := queue.NewNotifier(queue.NotifierConfig{
		Secret:     cfg.Webhook.Secret,
		MaxRetries: cfg.Webhook.MaxRetries,
		Timeout:    seconds(cfg.Webhook.TimeoutSeconds),
	}, log)

	// Optional fixture directory for id-based lookups.
	var dir domain.Directory
	var files *directory.FileDirectory
	if cfg.Directory.CandidatesFile != "" || cfg.Directory.JobsFile != "" {
		files, err = directory.Open(directory.Config{
			CandidatesFile: cfg.Directory.CandidatesFile,
			JobsFile:       cfg.Directory.JobsFile,
		}, log)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("open directory: %w", err)
		}
		dir = files
	}

	workers := queue.NewPool(broker, eng, st, notifier, dir, queue.PoolConfig{
		Workers:    cfg.Queue.Workers,
		JobTimeout: seconds(cfg.Queue.JobTimeoutSeconds),
	}, log)

	checker := health.NewChecker(st, provider, dataDir)
	checker.Add(health.Check{
		Name: "routing_breaker",
		CheckFn: func(context.Context) error {
			if snap := provider.BreakerSnapshot(); snap.State == resilience.BreakerOpen {
				return fmt.Errorf("routing circuit open after %d trips", snap.Trips)
			}
			return nil
		},
	})
	checker.Add(health.Check{
		Name: "queue_capacity",
		CheckFn: func(context.Context) error {
			if s := broker.Stats(); s.Pending >= maxDepth {
				return fmt.Errorf("queue saturated: %d pending", s.Pending)
			}
			return nil
		},
	})

	srv := api.NewServer(eng, broker, st, log)
	srv.SetHealthChecker(checker)
	if cfg.API.AuthSecret != "" {
		srv.SetAuthSecret(cfg.API.AuthSecret)
	}
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:    cfg,
		Log:       log,
		Store:     st,
		Travel:    provider,
		Synonyms:  syn,
		Engine:    eng,
		Broker:    broker,
		Workers:   workers,
		Notifier:  notifier,
		Directory: files,
		Health:    checker,
		Server:    srv,
	}, nil
}

// Serve starts the workers and the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.Workers.Start()
	go d.Broker.Run(ctx.Done())
	go d.Health.Run(ctx)

	if d.Config.Scoring.SynonymsFile != "" {
		if err := d.Synonyms.Watch(ctx, d.Config.Scoring.SynonymsFile, d.Log); err != nil {
			d.Log.Warn("synonyms watch disabled", zap.Error(err))
		}
	}
	if d.Directory != nil {
		if err := d.Directory.Watch(ctx); err != nil {
			d.Log.Warn("directory watch disabled", zap.Error(err))
		}
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal or context cancellation.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Intake stops first so the worker drain sees no new jobs.
		_ = httpServer.Shutdown(shutdownCtx)
		d.Workers.Stop()
		_ = d.Store.Close()
	}()

	fmt.Printf("matchd serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources. Safe after a completed Serve.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Workers != nil {
		d.Workers.Stop()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// seconds converts a config integer to a duration.
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
