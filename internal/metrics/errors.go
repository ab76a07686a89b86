package metrics

import "errors"

var (
	// ErrInvalidGranularity is returned for tokens outside `<digits><s|m|h|d>`.
	ErrInvalidGranularity = errors.New("invalid granularity")
	// ErrInvalidRollup is returned for an unknown rollup type or unusable column.
	ErrInvalidRollup = errors.New("invalid rollup")
	// ErrMissingRollup is returned by queries that require a rollup.
	ErrMissingRollup = errors.New("rollup is required")
	// ErrInvalidParams covers missing tenant scope, bad time ranges and bad
	// group-by columns.
	ErrInvalidParams = errors.New("invalid query parameters")
	// ErrUnknownKind is returned by ByKind for an unregistered metric kind.
	ErrUnknownKind = errors.New("unknown metric kind")
)

// IsInvalidParams reports whether err was caused by the caller's input
// rather than by the engine.
func IsInvalidParams(err error) bool {
	return errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrInvalidGranularity) ||
		errors.Is(err, ErrInvalidRollup) ||
		errors.Is(err, ErrMissingRollup)
}
