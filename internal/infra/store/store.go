// Package store persists job results across three tiers: an in-memory hot
// cache for fresh polls, a relational row store for durability, and a
// filesystem blob tier for oversized payloads.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
)

// Config shapes the tiered store.
type Config struct {
	Driver         string        // "sqlite" (default) or "postgres"
	DSN            string        // empty sqlite DSN derives its path from the data dir
	LargeThreshold int           // bytes; payloads above it move to the blob tier
	HotTTL         time.Duration // hot cache entry lifetime
	HotSize        int           // hot cache entry bound
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverSQLite,
		LargeThreshold: 100 << 10,
		HotTTL:         time.Hour,
		HotSize:        2048,
	}
}

// Store is the unified result store: write-through on save, first tier hit
// wins on load.
type Store struct {
	cfg  Config
	hot  *hotTier
	rows *rowTier
	blob *blobTier
	log  *zap.Logger
}

var _ domain.ResultStore = (*Store)(nil)

// Open builds the three tiers under dataDir.
func Open(dataDir string, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.LargeThreshold <= 0 {
		cfg.LargeThreshold = DefaultConfig().LargeThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}

	rows, err := openRows(dataDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("row tier: %w", err)
	}
	blob, err := newBlobTier(dataDir)
	if err != nil {
		rows.close()
		return nil, err
	}

	return &Store{
		cfg:  cfg,
		hot:  newHotTier(cfg.HotSize, cfg.HotTTL),
		rows: rows,
		blob: blob,
		log:  log.Named("store"),
	}, nil
}

// Save writes the record through every applicable tier. A single failing
// tier is logged and tolerated; the error is non-nil only when no durable
// tier kept the record. The hot cache is populated only after a durable
// write, so polls never see results the store would lose on restart.
func (s *Store) Save(ctx context.Context, rec domain.StoredResult) error {
	if rec.JobID == "" {
		return domain.Classify(domain.KindInvalidInput, errors.New("stored result has no job id"))
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	var errs *multierror.Error
	kept := 0

	rowRec := rec
	if len(rec.Payload) > s.cfg.LargeThreshold {
		// blob first, so the row can reference the object
		path, err := s.blob.put(rec.JobID, rec.Payload)
		s.observeWrite("blob", err)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("blob: %w", err))
		} else {
			rec.FilePath = path
			rowRec.FilePath = path
			kept++
		}
		rowRec.Payload = nil // oversize rows keep only the blob path
	}

	err := s.rows.upsert(ctx, rowRec)
	s.observeWrite("row", err)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("row: %w", err))
	} else {
		kept++
	}

	if kept == 0 {
		errs = multierror.Append(errs, domain.ErrAllTiersFailed)
		return domain.Classify(domain.KindPersistenceFault, errs)
	}
	if err := errs.ErrorOrNil(); err != nil {
		s.log.Warn("partial store write",
			zap.String("job_id", rec.JobID),
			zap.Error(err))
	}

	s.hot.put(rec)
	s.observeWrite("hot", nil)
	return nil
}

// Load returns the stored result for jobID, trying hot, then row, then blob.
// A blob hit re-populates the hot cache. Misses return
// domain.ErrResultNotFound.
func (s *Store) Load(ctx context.Context, jobID string) (*domain.StoredResult, error) {
	if rec, ok := s.hot.get(jobID); ok {
		metrics.StoreReads.WithLabelValues("hot").Inc()
		return &rec, nil
	}

	rec, err := s.rows.get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if rec.FilePath != "" && len(rec.Payload) == 0 {
		payload, berr := s.blob.get(rec.FilePath)
		if berr == nil {
			rec.Payload = payload
			metrics.StoreReads.WithLabelValues("blob").Inc()
			s.hot.put(*rec)
			return rec, nil
		}
		// the row still answers with status metadata
		s.log.Warn("blob payload unavailable",
			zap.String("job_id", jobID),
			zap.String("file_path", rec.FilePath),
			zap.Error(berr))
	}

	metrics.StoreReads.WithLabelValues("row").Inc()
	return rec, nil
}

// Recent lists the latest stored results, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.StoredResult, error) {
	return s.rows.recent(ctx, limit)
}

// Ping verifies the durable tier is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rows.ping(ctx)
}

// Close releases the row tier and drops the hot cache.
func (s *Store) Close() error {
	s.hot.purge()
	return s.rows.close()
}

func (s *Store) observeWrite(tier string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StoreWrites.WithLabelValues(tier, outcome).Inc()
}
