package rate

import "errors"

var (
	// ErrRedisUnavailable is an exported constant or variable used by the two-factor engine.
	ErrRedisUnavailable = errors.New("rate limit backend unavailable")
)
