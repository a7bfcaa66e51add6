package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Smooth paces admissions at fixed intervals using a token bucket. Unlike the
// sliding window, it spreads starts evenly across the second instead of
// allowing the full budget to burst at the window edge.
type Smooth struct {
	limiter *rate.Limiter
}

// NewSmooth creates a pacer admitting rps starts per second with burst 1.
func NewSmooth(rps int) (*Smooth, error) {
	if rps < 1 {
		return nil, ErrInvalidLimit
	}
	return &Smooth{limiter: rate.NewLimiter(rate.Limit(rps), 1)}, nil
}

func (s *Smooth) Acquire(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
