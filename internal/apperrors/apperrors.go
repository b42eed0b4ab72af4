// Package apperrors collects the sentinel error values shared across the
// ingestion pipeline, so callers at every layer can errors.Is against the
// same small taxonomy instead of string-matching or panicking.
package apperrors

import "errors"

var (
	// ErrAuthMissing and ErrAuthInvalid surface as 401 at ingress.
	ErrAuthMissing = errors.New("auth missing")
	ErrAuthInvalid = errors.New("auth invalid")

	// ErrUserMissing is a credit or state-machine operation against an
	// unknown user; surfaced as a 5xx at ingress and always logged.
	ErrUserMissing = errors.New("user missing")

	// ErrCreditsExhausted gates live-webhook extraction and backfill.
	ErrCreditsExhausted = errors.New("credits exhausted")

	// ErrAggregatorTransient is retried once with backoff inside fetch
	// loops; if it persists the owning folder aborts.
	ErrAggregatorTransient = errors.New("aggregator transient error")

	// ErrAggregatorFatal aborts the current task; locks are released in
	// the caller's deferred cleanup.
	ErrAggregatorFatal = errors.New("aggregator fatal error")

	// ErrExtractionInvalid triggers the extraction retry policy; after
	// retries are exhausted a safe empty result is produced instead.
	ErrExtractionInvalid = errors.New("extraction invalid")

	// ErrNotFound covers commitment lookups; surfaced as 404.
	ErrNotFound = errors.New("not found")

	// ErrShadowStoreUnavailable is best-effort: delete still proceeds,
	// restore fails with ErrNotFound.
	ErrShadowStoreUnavailable = errors.New("shadow store unavailable")

	// ErrLockStale is returned by a lock acquisition attempt that finds
	// an existing lock younger than its staleness threshold.
	ErrLockStale = errors.New("lock held and not stale")
)
