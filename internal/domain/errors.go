package domain

import "errors"

// Error kinds surfaced by a pipeline invocation. Adapters wrap these with
// context, callers classify with errors.Is.
var (
	// ErrInvalidTimestamp reports a window bound that does not match TimeLayout.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrMalformedFeed reports a decoded upstream payload whose shape breaks
	// the feed invariants. It usually means the upstream schema changed.
	ErrMalformedFeed = errors.New("malformed feed")

	// ErrUpstreamUnavailable reports a failed or timed out upstream fetch.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPersistenceFailure reports a database connection, conversion or insert failure.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInvalidQuery reports a request descriptor that cannot be sent upstream.
	ErrInvalidQuery = errors.New("invalid query")
)
