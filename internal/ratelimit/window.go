// Package ratelimit provides admission gates that pace work unit starts.
//
// The default gate is a sliding-window limiter: at any instant, at most
// `limit` admissions fall inside the trailing window. A token-bucket pacer
// backed by golang.org/x/time/rate is available as an alternative for
// smoother spacing.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// DefaultWindow is the trailing interval admissions are counted over.
const DefaultWindow = time.Second

// ErrInvalidLimit is returned when a gate is constructed with a limit below 1.
// A zero limit would compute a non-terminating wait, so it is rejected up
// front instead of hanging the first caller.
var ErrInvalidLimit = errors.New("ratelimit: limit must be >= 1")

// Pacer gates admission of work units. Acquire blocks until one more unit
// may start, or until ctx is cancelled.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// SlidingWindow admits at most `limit` callers per trailing window. It never
// rejects; it only delays. Safe for concurrent use.
type SlidingWindow struct {
	limit  int
	window time.Duration

	// gate serializes the prune-check-append sequence across callers. Holding
	// the slot through the wait keeps admission FIFO at the gate and prevents
	// two callers from both observing room for the same slot.
	gate chan struct{}

	admitted []time.Time // grant instants, oldest first
}

// NewSlidingWindow creates a limiter admitting at most limit starts per
// window. A window of zero or less falls back to DefaultWindow.
func NewSlidingWindow(limit int, window time.Duration) (*SlidingWindow, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	return &SlidingWindow{
		limit:    limit,
		window:   window,
		gate:     gate,
		admitted: make([]time.Time, 0, limit),
	}, nil
}

// Acquire blocks until admitting one more unit keeps the count of admissions
// within the trailing window at or below the limit, then records the grant
// instant. If ctx is cancelled while waiting, no instant is recorded.
func (s *SlidingWindow) Acquire(ctx context.Context) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { s.gate <- struct{}{} }()

	now := time.Now()
	s.prune(now)

	if len(s.admitted) < s.limit {
		s.admitted = append(s.admitted, now)
		return nil
	}

	// Window is full: a single sleep until the oldest admission expires.
	wait := s.admitted[0].Add(s.window).Sub(now)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Record the post-wake instant, not the pre-sleep one.
	now = time.Now()
	s.prune(now)
	s.admitted = append(s.admitted, now)
	return nil
}

// prune drops grant instants older than now-window. Instants are appended in
// increasing order, so trimming the expired prefix suffices.
func (s *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.admitted) && !s.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.admitted = append(s.admitted[:0], s.admitted[i:]...)
	}
}
