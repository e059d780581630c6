package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TravelProvider resolves an origin/destination pair to a travel time.
// Implementations never block past their configured timeout. A hybrid
// provider always answers; ErrTravelUnavailable only escapes when both the
// real and simulated paths are disabled.
type TravelProvider interface {
	Route(ctx context.Context, q TravelQuery) (TravelResult, error)
}

// Directory resolves candidate and job ids for the async surface. Records
// come back raw; the canonicalizer is the only consumer of their shape.
// Production deployments implement this against their own systems of record.
type Directory interface {
	GetCandidate(ctx context.Context, id string) (map[string]any, error)
	GetJob(ctx context.Context, id string) (map[string]any, error)
	ListCandidates(ctx context.Context) ([]map[string]any, error)
	ListJobs(ctx context.Context) ([]map[string]any, error)
}

// ResultStore persists completed job envelopes across the hot, row, and blob
// tiers. Save is best-effort per tier; it fails only when every tier fails.
type ResultStore interface {
	Save(ctx context.Context, rec StoredResult) error
	Load(ctx context.Context, jobID string) (*StoredResult, error)
	Close() error
}
