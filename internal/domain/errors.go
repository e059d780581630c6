package domain

import (
	"context"
	"errors"
	"net"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Canonicalization errors
	ErrMissingSkills         = errors.New("candidate has no usable skills")
	ErrMissingTitle          = errors.New("job posting has no title")
	ErrMissingRequiredSkills = errors.New("job posting has no required skills")
	ErrInvalidPriorityNote   = errors.New("priority note is not a number in 1..10")
	ErrInvalidSalaryBand     = errors.New("salary band minimum exceeds maximum")
	ErrNotAnObject           = errors.New("record is not a JSON object")

	// Weight resolver errors
	ErrNegativeWeight       = errors.New("weight component is negative")
	ErrWeightsNotNormalized = errors.New("weight components do not sum to 1.0")

	// Travel errors
	ErrRouteNotFound     = errors.New("no route between origin and destination")
	ErrRouteAPIStatus    = errors.New("routing api returned non-ok status")
	ErrTravelUnavailable = errors.New("travel lookup disabled in both real and simulated modes")

	// Circuit breaker errors
	ErrCircuitOpen = errors.New("circuit breaker open")

	// Algorithm errors
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrNoJobs           = errors.New("no job postings supplied")

	// Queue errors
	ErrQueueFull   = errors.New("queue depth limit reached")
	ErrQueueClosed = errors.New("broker is shut down")
	ErrJobNotFound = errors.New("job not found")
	ErrUnknownTask = errors.New("unknown task name")
	ErrNoDirectory = errors.New("no candidate/job directory configured")

	// Store errors
	ErrResultNotFound = errors.New("result not found")
	ErrAllTiersFailed = errors.New("every store tier failed")

	// Directory errors
	ErrCandidateNotFound  = errors.New("candidate not found in directory")
	ErrJobPostingNotFound = errors.New("job posting not found in directory")
)

// ─── Error Kinds ────────────────────────────────────────────────────────────
// Kind classifies failures so the resilience layer can route them without
// string matching. Classification travels with the error via Classified.

// Kind is the failure class of an error.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindInvalidInput      Kind = "invalid_input"
	KindTransientExternal Kind = "transient_external"
	KindAlgorithmFault    Kind = "algorithm_fault"
	KindWorkerFault       Kind = "worker_fault"
	KindPersistenceFault  Kind = "persistence_fault"
	KindWebhookFault      Kind = "webhook_fault"
)

// Classified wraps an error with its failure class.
type Classified struct {
	Kind Kind
	Err  error
}

func (c *Classified) Error() string { return string(c.Kind) + ": " + c.Err.Error() }
func (c *Classified) Unwrap() error { return c.Err }

// Classify attaches a kind to err. A nil err stays nil.
func Classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Classified{Kind: kind, Err: err}
}

// KindOf extracts the failure class of err. Unclassified errors fall back on
// structural inspection: canonicalization sentinels are invalid input,
// timeouts and network errors are transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind
	}
	switch {
	case errors.Is(err, ErrMissingSkills),
		errors.Is(err, ErrMissingTitle),
		errors.Is(err, ErrMissingRequiredSkills),
		errors.Is(err, ErrInvalidPriorityNote),
		errors.Is(err, ErrInvalidSalaryBand),
		errors.Is(err, ErrNotAnObject):
		return KindInvalidInput
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrRouteAPIStatus):
		return KindTransientExternal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientExternal
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientExternal
}
