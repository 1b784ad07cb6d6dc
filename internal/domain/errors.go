package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrProviderUnavailable signals a failed or timed-out embedding,
	// classifier, vector-index or store call. Recoverable via the next
	// fallback tier; never surfaces to the caller as an error.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidClassifierOutput signals a classifier response that failed
	// schema validation. Recoverable via rule-based extraction.
	ErrInvalidClassifierOutput = errors.New("invalid classifier output")
	// ErrInvalidFilterSpec signals a filter spec violating its own invariants.
	ErrInvalidFilterSpec = errors.New("invalid filter spec")
	// ErrEmptyQuery signals a query carrying neither text nor image.
	ErrEmptyQuery = errors.New("query must carry text or image")
	// ErrTaskNotFound signals an unknown reindex task id.
	ErrTaskNotFound = errors.New("reindex task not found")
	// ErrReindexRunning signals that a full reindex is already in flight.
	ErrReindexRunning = errors.New("reindex already running")
	// ErrReindexCancelled is the terminal error of a caller-cancelled
	// reindex task, distinct from a genuine downstream failure.
	ErrReindexCancelled = errors.New("reindex cancelled by caller")
)
