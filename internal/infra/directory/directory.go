// Package directory serves raw candidate and job records by id from JSON
// fixture files. Async payloads that reference candidate_id/job_id instead
// of inlining records resolve through it.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
)

// Config names the fixture files. Either may be empty; lookups against a
// missing side return not-found.
type Config struct {
	CandidatesFile string
	JobsFile       string
}

// FileDirectory keeps both collections in memory and reloads them when the
// files change on disk. Records are raw maps; canonicalization stays the
// engine's job.
type FileDirectory struct {
	mu         sync.RWMutex
	candidates map[string]map[string]any
	jobs       map[string]map[string]any
	cfg        Config
	log        *zap.Logger
}

var _ domain.Directory = (*FileDirectory)(nil)

// Open loads the configured fixture files.
func Open(cfg Config, log *zap.Logger) (*FileDirectory, error) {
	if cfg.CandidatesFile == "" && cfg.JobsFile == "" {
		return nil, fmt.Errorf("directory needs a candidates or jobs file")
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &FileDirectory{
		candidates: map[string]map[string]any{},
		jobs:       map[string]map[string]any{},
		cfg:        cfg,
		log:        log.Named("directory"),
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads both fixture files and swaps the indexes.
func (d *FileDirectory) Reload() error {
	candidates, err := loadCollection(d.cfg.CandidatesFile, "candidates", "candidate_id")
	if err != nil {
		return err
	}
	jobs, err := loadCollection(d.cfg.JobsFile, "jobs", "job_id")
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.candidates = candidates
	d.jobs = jobs
	d.mu.Unlock()

	d.log.Info("directory loaded",
		zap.Int("candidates", len(candidates)),
		zap.Int("jobs", len(jobs)))
	return nil
}

// GetCandidate returns the raw candidate record for id.
func (d *FileDirectory) GetCandidate(_ context.Context, id string) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if raw, ok := d.candidates[id]; ok {
		return raw, nil
	}
	return nil, domain.ErrCandidateNotFound
}

// GetJob returns the raw job posting record for id.
func (d *FileDirectory) GetJob(_ context.Context, id string) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if raw, ok := d.jobs[id]; ok {
		return raw, nil
	}
	return nil, domain.ErrJobPostingNotFound
}

// ListCandidates returns every candidate record, ordered by id.
func (d *FileDirectory) ListCandidates(_ context.Context) ([]map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedValues(d.candidates), nil
}

// ListJobs returns every job posting record, ordered by id.
func (d *FileDirectory) ListJobs(_ context.Context) ([]map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedValues(d.jobs), nil
}

// Counts returns the collection sizes.
func (d *FileDirectory) Counts() (candidates, jobs int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.candidates), len(d.jobs)
}

// Watch reloads the directory whenever a fixture file changes, until ctx is
// cancelled. Atomic replaces emit Create events, so both kinds trigger.
func (d *FileDirectory) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("directory watcher: %w", err)
	}
	watched := map[string]bool{}
	for _, path := range []string{d.cfg.CandidatesFile, d.cfg.JobsFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("directory watcher: %w", err)
		}
		watched[dir] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != d.cfg.CandidatesFile && ev.Name != d.cfg.JobsFile {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := d.Reload(); err != nil {
					d.log.Warn("directory reload failed", zap.String("path", ev.Name), zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.log.Warn("directory watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// ─── Loading ────────────────────────────────────────────────────────────────

// loadCollection parses a fixture file holding either a top-level JSON array
// of records or an object wrapping the array under key. Records without an
// id get a positional one.
func loadCollection(path, key, idKey string) (map[string]map[string]any, error) {
	if path == "" {
		return map[string]map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var wrapped map[string]json.RawMessage
		if jerr := json.Unmarshal(data, &wrapped); jerr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		raw, ok := wrapped[key]
		if !ok {
			return nil, fmt.Errorf("parse %s: neither a record array nor a %q object", path, key)
		}
		if jerr := json.Unmarshal(raw, &records); jerr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, jerr)
		}
	}

	singular := key[:len(key)-1]
	index := make(map[string]map[string]any, len(records))
	for i, rec := range records {
		id := recordID(rec, "id", idKey)
		if id == "" {
			id = fmt.Sprintf("%s-%d", singular, i+1)
			rec["id"] = id
		}
		index[id] = rec
	}
	return index, nil
}

func recordID(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func sortedValues(index map[string]map[string]any) []map[string]any {
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, index[id])
	}
	return out
}
