package ratelimiter

import (
	"context"
	"time"
)

// Store is a rate limit storage backend.
type Store interface {
	// ConsumeTokens attempts to consume tokens from the bucket at key,
	// refilling first according to config. A negative remaining count means
	// the request must be denied; the state is still updated so denials
	// keep the bucket drained.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset clears the state for key.
	Reset(ctx context.Context, key string) error
}
