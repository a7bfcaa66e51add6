package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/volleyhq/volley/internal/metrics"
	"github.com/volleyhq/volley/internal/ratelimit"
)

// Scheduler selects how attempts are executed concurrently.
type Scheduler string

const (
	// SchedulerWorkers runs a fixed pool of Concurrency workers fed by a
	// central admission loop.
	SchedulerWorkers Scheduler = "workers"
	// SchedulerSemaphore starts one goroutine per attempt, gated by a
	// counting semaphore of size Concurrency.
	SchedulerSemaphore Scheduler = "semaphore"
)

// Pacing selects the admission gate implementation.
type Pacing string

const (
	// PacingWindow bounds admissions over a trailing window; the full budget
	// may burst at the window edge.
	PacingWindow Pacing = "window"
	// PacingSmooth spaces admissions evenly at 1/Rate intervals.
	PacingSmooth Pacing = "smooth"
)

// Options configure the Engine.
type Options struct {
	Total       int             // total attempts; each gets a distinct index in [0, Total)
	Concurrency int             // maximum attempts in flight, >= 1
	Rate        int             // admissions per Window, >= 1
	Window      time.Duration   // trailing window, defaults to ratelimit.DefaultWindow
	Scheduler   Scheduler       // defaults to SchedulerWorkers
	Pacing      Pacing          // defaults to PacingWindow
	Unit        WorkUnit        // work executor (required)
	Pacer       ratelimit.Pacer // optional injection for tests; overrides Rate/Window/Pacing
}

// ConfigError reports invalid engine options. It is the only error class
// that prevents a run; every other failure is localized to its own outcome.
type ConfigError struct {
	issues []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual validation failures.
func (e *ConfigError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Engine wires the admission gate, the dispatcher, and the aggregator, and
// exposes a single Run entry point. Both scheduling models satisfy the same
// guarantees: exactly Total executions, at most Concurrency in flight, one
// Acquire per attempt.
type Engine struct {
	opt   Options
	pacer ratelimit.Pacer
	agg   *metrics.Aggregator
}

// NewEngine validates opt and builds the engine. Invalid Total, Concurrency,
// or Rate yields a *ConfigError and nothing runs.
func NewEngine(opt Options) (*Engine, error) {
	var issues []string
	if opt.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if opt.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if opt.Rate < 1 && opt.Pacer == nil {
		issues = append(issues, "rate must be >= 1")
	}
	if opt.Unit == nil {
		issues = append(issues, "work unit is required")
	}
	if len(issues) > 0 {
		return nil, &ConfigError{issues: issues}
	}

	if opt.Scheduler == "" {
		opt.Scheduler = SchedulerWorkers
	}
	if opt.Pacing == "" {
		opt.Pacing = PacingWindow
	}

	pacer := opt.Pacer
	if pacer == nil {
		var err error
		switch opt.Pacing {
		case PacingSmooth:
			pacer, err = ratelimit.NewSmooth(opt.Rate)
		case PacingWindow:
			pacer, err = ratelimit.NewSlidingWindow(opt.Rate, opt.Window)
		default:
			return nil, &ConfigError{issues: []string{fmt.Sprintf("pacing model %q is not supported", opt.Pacing)}}
		}
		if err != nil {
			return nil, &ConfigError{issues: []string{err.Error()}}
		}
	}

	return &Engine{
		opt:   opt,
		pacer: pacer,
		agg:   metrics.NewAggregator(opt.Total),
	}, nil
}

// Metrics exposes the live aggregator for progress reporting.
func (e *Engine) Metrics() *metrics.Aggregator {
	return e.agg
}

// Run executes all attempts and returns the final summary. Cancelling ctx
// stops admitting new attempts; attempts already in flight finish (or fail
// on their own timeouts) and are counted, so Run always returns a summary.
func (e *Engine) Run(ctx context.Context) metrics.Summary {
	e.agg.Start()

	switch e.opt.Scheduler {
	case SchedulerSemaphore:
		e.runSemaphore(ctx)
	default:
		e.runWorkers(ctx)
	}

	return e.agg.Summarize(e.agg.Elapsed())
}

// runWorkers feeds attempt indices through an unbuffered channel to a fixed
// pool of Concurrency workers. The admission loop serializes pacing so the
// gate is acquired exactly once per attempt, in index order.
func (e *Engine) runWorkers(ctx context.Context) {
	permits := make(chan int)

	go func() {
		defer close(permits)
		for i := 0; i < e.opt.Total; i++ {
			if ctx.Err() != nil {
				return
			}
			if err := e.pacer.Acquire(ctx); err != nil {
				return
			}
			select {
			case permits <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(e.opt.Concurrency)
	for w := 0; w < e.opt.Concurrency; w++ {
		go func() {
			defer wg.Done()
			for attempt := range permits {
				e.execute(ctx, attempt)
			}
		}()
	}
	wg.Wait()
}

// runSemaphore starts one goroutine per attempt gated by a counting
// semaphore, the cooperative-task shape: hold a slot, then wait at the gate,
// then execute.
func (e *Engine) runSemaphore(ctx context.Context) {
	sem := make(chan struct{}, e.opt.Concurrency)

	var wg sync.WaitGroup
	wg.Add(e.opt.Total)
	for i := 0; i < e.opt.Total; i++ {
		go func(attempt int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if err := e.pacer.Acquire(ctx); err != nil {
				return
			}
			e.execute(ctx, attempt)
		}(i)
	}
	wg.Wait()
}

// execute runs one attempt and records its outcome. A failing unit never
// propagates: errors and panics become failed outcomes and the run goes on.
func (e *Engine) execute(ctx context.Context, attempt int) {
	start := time.Now()
	status, err := runUnit(ctx, e.opt.Unit, attempt)
	e.agg.Record(metrics.Outcome{
		Attempt: attempt,
		Status:  status,
		Elapsed: time.Since(start),
		Err:     err,
	})
}

func runUnit(ctx context.Context, unit WorkUnit, attempt int) (status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = 0
			err = fmt.Errorf("work unit panic: %v", r)
		}
	}()
	return unit.Execute(ctx, attempt)
}
