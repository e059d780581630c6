// Package scoring computes per-dimension subscores for one candidate against
// one job posting. Every function is pure given its inputs and the synonym
// table: same arguments, same score. Values live in [0,1]; composition into
// a global score is the variants' job.
package scoring

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
)

// DefaultSimilarityThreshold is the bigram similarity above which two skill
// tokens count as the same skill.
const DefaultSimilarityThreshold = 0.85

// Synonyms maps skill aliases onto canonical tokens and answers near-match
// queries. The table is shared across concurrent requests; reloads swap the
// alias map under a write lock.
type Synonyms struct {
	mu        sync.RWMutex
	aliases   map[string]string
	threshold float64
}

// builtinAliases covers the usual spelling drift between profiles and
// postings. A deployment extends or replaces it with a synonyms file.
var builtinAliases = map[string]string{
	"golang":     "go",
	"k8s":        "kubernetes",
	"js":         "javascript",
	"ts":         "typescript",
	"py":         "python",
	"postgres":   "postgresql",
	"psql":       "postgresql",
	"node":       "nodejs",
	"node.js":    "nodejs",
	"react.js":   "react",
	"reactjs":    "react",
	"vue.js":     "vue",
	"vuejs":      "vue",
	"ml":         "machine learning",
	"dl":         "deep learning",
	"ci/cd":      "cicd",
	"gcp":        "google cloud",
	"springboot": "spring boot",
}

// DefaultSynonyms returns the built-in table.
func DefaultSynonyms() *Synonyms {
	aliases := make(map[string]string, len(builtinAliases))
	for k, v := range builtinAliases {
		aliases[k] = v
	}
	return &Synonyms{aliases: aliases, threshold: DefaultSimilarityThreshold}
}

// synonymsFile is the TOML shape of a synonyms override file.
type synonymsFile struct {
	Threshold float64           `toml:"threshold"`
	Aliases   map[string]string `toml:"aliases"`
}

// LoadFile replaces the table from a TOML file. Aliases in the file extend
// the built-ins; a zero threshold keeps the current one.
func (s *Synonyms) LoadFile(path string) error {
	var f synonymsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("load synonyms %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for alias, canonical := range f.Aliases {
		s.aliases[alias] = canonical
	}
	if f.Threshold > 0 {
		s.threshold = f.Threshold
	}
	return nil
}

// Threshold returns the active similarity threshold.
func (s *Synonyms) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetThreshold overrides the similarity threshold.
func (s *Synonyms) SetThreshold(t float64) {
	if t <= 0 || t > 1 {
		return
	}
	s.mu.Lock()
	s.threshold = t
	s.mu.Unlock()
}

// Canonical resolves a token through the alias table.
func (s *Synonyms) Canonical(tok string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.aliases[tok]; ok {
		return c
	}
	return tok
}

// Match reports whether two case-folded tokens name the same skill: equal
// after alias resolution, or bigram similarity at or above the threshold.
func (s *Synonyms) Match(a, b string) bool {
	ca, cb := s.Canonical(a), s.Canonical(b)
	if ca == cb {
		return true
	}
	return domain.Similarity(ca, cb) >= s.Threshold()
}

// Watch reloads the synonyms file whenever it changes on disk, until ctx is
// cancelled. Editors that replace the file atomically emit Create events, so
// both Write and Create trigger a reload.
func (s *Synonyms) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("synonyms watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("synonyms watcher: %w", err)
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
				if ev.Name != path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := s.LoadFile(path); err != nil {
					logger.Warn("synonyms reload failed", zap.String("path", path), zap.Error(err))
					continue
				}
				logger.Info("synonyms reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("synonyms watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
