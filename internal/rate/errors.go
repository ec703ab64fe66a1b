package rate

import "errors"

var (
	// ErrRateLimited is returned when a caller has exhausted a window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
