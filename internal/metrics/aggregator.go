package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Aggregator collects outcomes from concurrently completing work units and
// derives the final Summary. Record is safe to call from multiple goroutines.
type Aggregator struct {
	mu       sync.Mutex
	expected int
	recorded int

	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minElapsed time.Duration
	maxElapsed time.Duration
	sumElapsed time.Duration

	statusCodes map[int]int
	errorCounts map[string]int

	start time.Time
}

// Summary is the terminal snapshot of a run. Latency is nil when there were
// zero successful outcomes; callers must handle absence explicitly.
type Summary struct {
	Total       int64   `json:"total"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	SuccessRate float64 `json:"success_rate_pct"`

	// Partial marks a snapshot taken before every expected outcome arrived,
	// for instance after a cancelled run.
	Partial bool `json:"partial,omitempty"`

	Duration       time.Duration `json:"-"`
	DurationMs     float64       `json:"duration_ms"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	Latency *LatencyStats `json:"latency,omitempty"`

	StatusCodes map[string]int `json:"status_codes,omitempty"`
	Errors      map[string]int `json:"errors,omitempty"`
}

// LatencyStats are computed over successful outcomes only.
type LatencyStats struct {
	Min  time.Duration `json:"-"`
	Max  time.Duration `json:"-"`
	Mean time.Duration `json:"-"`
	P50  time.Duration `json:"-"`
	P90  time.Duration `json:"-"`
	P99  time.Duration `json:"-"`

	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// NewAggregator creates an aggregator expecting `expected` outcomes.
func NewAggregator(expected int) *Aggregator {
	if expected < 0 {
		expected = 0
	}
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Aggregator{
		expected:    expected,
		hist:        h,
		statusCodes: make(map[int]int),
		errorCounts: make(map[string]int),
		start:       time.Now(),
	}
}

// Start marks the run start for elapsed/RPS computation. Separate from
// construction so setup cost is not billed to the run.
func (a *Aggregator) Start() {
	a.mu.Lock()
	a.start = time.Now()
	a.mu.Unlock()
}

// Record appends one outcome. Each outcome is counted exactly once; no
// updates are lost under concurrent calls.
func (a *Aggregator) Record(out Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recorded++
	if out.Status != 0 {
		a.statusCodes[out.Status]++
	}

	if !out.Success() {
		a.failures++
		a.errorCounts[errorLabel(out.Err)]++
		return
	}

	a.successes++
	a.sumElapsed += out.Elapsed
	if a.successes == 1 || out.Elapsed < a.minElapsed {
		a.minElapsed = out.Elapsed
	}
	if out.Elapsed > a.maxElapsed {
		a.maxElapsed = out.Elapsed
	}

	us := out.Elapsed.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)
}

// Summarize computes the Summary for the given elapsed wall time. It reads a
// consistent snapshot and is idempotent once all outcomes are recorded.
func (a *Aggregator) Summarize(elapsed time.Duration) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.successes + a.failures
	s := Summary{
		Total:     total,
		Successes: a.successes,
		Failures:  a.failures,
		Partial:   a.recorded < a.expected,
		Duration:  elapsed,
	}
	if total > 0 {
		s.SuccessRate = float64(a.successes) / float64(total) * 100
	}
	s.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		s.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if a.successes > 0 {
		lat := &LatencyStats{
			Min:  a.minElapsed,
			Max:  a.maxElapsed,
			Mean: time.Duration(int64(a.sumElapsed) / a.successes),
		}
		if a.hist.TotalCount() > 0 {
			lat.P50 = time.Duration(a.hist.ValueAtQuantile(50)) * time.Microsecond
			lat.P90 = time.Duration(a.hist.ValueAtQuantile(90)) * time.Microsecond
			lat.P99 = time.Duration(a.hist.ValueAtQuantile(99)) * time.Microsecond
		}
		lat.MinMs = float64(lat.Min) / float64(time.Millisecond)
		lat.MaxMs = float64(lat.Max) / float64(time.Millisecond)
		lat.MeanMs = float64(lat.Mean) / float64(time.Millisecond)
		lat.P50Ms = float64(lat.P50) / float64(time.Millisecond)
		lat.P90Ms = float64(lat.P90) / float64(time.Millisecond)
		lat.P99Ms = float64(lat.P99) / float64(time.Millisecond)
		s.Latency = lat
	}

	if len(a.statusCodes) > 0 {
		s.StatusCodes = make(map[string]int, len(a.statusCodes))
		for code, count := range a.statusCodes {
			s.StatusCodes[strconv.Itoa(code)] = count
		}
	}
	if len(a.errorCounts) > 0 {
		s.Errors = make(map[string]int, len(a.errorCounts))
		for label, count := range a.errorCounts {
			s.Errors[label] = count
		}
	}

	return s
}

// Elapsed returns the wall time since Start.
func (a *Aggregator) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.start)
}

// errorLabel buckets an error under a short human-readable label so the
// report stays useful when thousands of attempts fail the same way.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	type statusCoder interface{ HTTPStatus() int }
	var sc statusCoder
	if errors.As(err, &sc) {
		return fmt.Sprintf("status %d", sc.HTTPStatus())
	}
	return fmt.Sprintf("%T", err)
}
