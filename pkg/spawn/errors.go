package spawn

import "errors"

var (
	// ErrNoPoolBound is returned by Initialize when no pool is supplied.
	// The scheduler stays usable as a value but never ticks.
	ErrNoPoolBound = errors.New("no pool bound")

	// ErrNotPoolable means the pool hands out instances without the activation capability.
	ErrNotPoolable = errors.New("pool instances lack the poolable capability")

	// ErrUnknownTier means a milestone names a tier the pool does not have.
	ErrUnknownTier = errors.New("milestone references unknown tier")

	// ErrInvalidConfig wraps every scheduler configuration failure.
	ErrInvalidConfig = errors.New("invalid scheduler config")
)
