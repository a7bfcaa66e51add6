package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/volleyhq/volley/internal/metrics"
)

// ProgressReporter displays real-time progress updates while a run is active.
type ProgressReporter struct {
	agg      *metrics.Aggregator
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(agg *metrics.Aggregator, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		agg:      agg,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and clears the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			s := p.agg.Summarize(p.agg.Elapsed())
			fmt.Fprintf(p.writer, "\rAttempts: %d | Successes: %d | Failures: %d | RPS: %.1f",
				s.Total, s.Successes, s.Failures, s.RequestsPerSec)
		case <-p.done:
			fmt.Fprint(p.writer, "\r")
			return
		}
	}
}
