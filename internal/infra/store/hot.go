package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/matchd-io/matchd/internal/domain"
)

// hotTier keeps freshly written results in memory so status polls right
// after completion never touch the database.
type hotTier struct {
	lru *expirable.LRU[string, domain.StoredResult]
}

func newHotTier(size int, ttl time.Duration) *hotTier {
	if size <= 0 {
		size = 2048
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &hotTier{lru: expirable.NewLRU[string, domain.StoredResult](size, nil, ttl)}
}

func (h *hotTier) put(rec domain.StoredResult) {
	h.lru.Add(rec.JobID, rec)
}

func (h *hotTier) get(jobID string) (domain.StoredResult, bool) {
	return h.lru.Get(jobID)
}

func (h *hotTier) purge() {
	h.lru.Purge()
}
