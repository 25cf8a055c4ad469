// Package guard serializes paid actions per user. A held guard survives the
// HTTP request that took it, so a client retry cannot start a second charge
// while the first generation is still running.
package guard

import (
	"context"
	"errors"
)

var ErrInFlight = errors.New("another request is already in flight")

// Guard hands out at most one live lease per key.
type Guard interface {
	// Acquire returns a release func, or ErrInFlight when the key is held.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
