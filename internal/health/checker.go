// Package health runs periodic checks over the service's collaborators and
// keeps the latest results for the API to report.
package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Pinger is the slice of the result store the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check defines a single health check with an optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status is the result of one health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// probeQuery is a route both the simulator and the real API can answer; it
// exercises the full travel resolution chain.
var probeQuery = domain.TravelQuery{
	Origin:      "Paris",
	Destination: "Boulogne-Billancourt",
	Mode:        domain.ModeDriving,
}

// NewChecker creates a checker with the standard checks: result store
// reachability, data dir writability, and a travel probe. travel may be nil
// when lookups are disabled.
func NewChecker(store Pinger, travel domain.TravelProvider, dataDir string) *Checker {
	checks := []Check{
		{
			Name: "store",
			CheckFn: func(ctx context.Context) error {
				return store.Ping(ctx)
			},
			// sqlite auto-recovers via WAL; postgres reconnects through
			// database/sql pooling
		},
		{
			Name: "data_dir",
			CheckFn: func(ctx context.Context) error {
				return checkWritable(dataDir)
			},
			RecoverFn: func(ctx context.Context) error {
				return os.MkdirAll(dataDir, 0700)
			},
		},
	}
	if travel != nil {
		checks = append(checks, Check{
			Name: "travel",
			CheckFn: func(ctx context.Context) error {
				_, err := travel.Route(ctx, probeQuery)
				return err
			},
		})
	}
	return &Checker{interval: 60 * time.Second, checks: checks}
}

// Add appends a custom check.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	c.checks = append(c.checks, check)
	c.mu.Unlock()
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr == nil {
					// re-probe once after a successful recovery
					if err := check.CheckFn(ctx); err == nil {
						s.Healthy = true
						s.Error = ""
					}
				}
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s

		gauge := 0.0
		if s.Healthy {
			gauge = 1.0
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(gauge)
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// checkWritable verifies the data dir exists and accepts writes.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe := filepath.Join(dir, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	return os.Remove(probe)
}
