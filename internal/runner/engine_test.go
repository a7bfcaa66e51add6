package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/volleyhq/volley/internal/runner"
)

// trackingUnit counts executions and the maximum observed in-flight attempts.
type trackingUnit struct {
	latency  time.Duration
	calls    int64
	inFlight int64
	maxSeen  int64
	mu       sync.Mutex
	attempts map[int]int
	fail     func(attempt int) error
}

func newTrackingUnit(latency time.Duration) *trackingUnit {
	return &trackingUnit{latency: latency, attempts: make(map[int]int)}
}

func (u *trackingUnit) Execute(ctx context.Context, attempt int) (int, error) {
	atomic.AddInt64(&u.calls, 1)
	cur := atomic.AddInt64(&u.inFlight, 1)
	defer atomic.AddInt64(&u.inFlight, -1)
	for {
		max := atomic.LoadInt64(&u.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt64(&u.maxSeen, max, cur) {
			break
		}
	}

	u.mu.Lock()
	u.attempts[attempt]++
	u.mu.Unlock()

	if u.latency > 0 {
		select {
		case <-time.After(u.latency):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if u.fail != nil {
		if err := u.fail(attempt); err != nil {
			return 0, err
		}
	}
	return 200, nil
}

func schedulers() []runner.Scheduler {
	return []runner.Scheduler{runner.SchedulerWorkers, runner.SchedulerSemaphore}
}

func TestEngineRunsExactlyTotalWithDistinctIndices(t *testing.T) {
	for _, sched := range schedulers() {
		t.Run(string(sched), func(t *testing.T) {
			unit := newTrackingUnit(time.Millisecond)
			eng, err := runner.NewEngine(runner.Options{
				Total:       25,
				Concurrency: 4,
				Rate:        1000,
				Scheduler:   sched,
				Unit:        unit,
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			s := eng.Run(context.Background())
			if s.Total != 25 {
				t.Fatalf("expected 25 outcomes, got %d", s.Total)
			}
			if unit.calls != 25 {
				t.Fatalf("expected 25 executions, got %d", unit.calls)
			}
			unit.mu.Lock()
			defer unit.mu.Unlock()
			if len(unit.attempts) != 25 {
				t.Fatalf("expected 25 distinct attempt indices, got %d", len(unit.attempts))
			}
			for i := 0; i < 25; i++ {
				if unit.attempts[i] != 1 {
					t.Fatalf("attempt %d executed %d times", i, unit.attempts[i])
				}
			}
		})
	}
}

func TestEngineEnforcesConcurrencyCap(t *testing.T) {
	for _, sched := range schedulers() {
		t.Run(string(sched), func(t *testing.T) {
			unit := newTrackingUnit(5 * time.Millisecond)
			eng, err := runner.NewEngine(runner.Options{
				Total:       40,
				Concurrency: 3,
				Rate:        10000,
				Scheduler:   sched,
				Unit:        unit,
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			eng.Run(context.Background())
			if max := atomic.LoadInt64(&unit.maxSeen); max > 3 {
				t.Fatalf("concurrency cap exceeded: observed %d in flight", max)
			}
		})
	}
}

func TestEngineFailingUnitNeverBlocksOthers(t *testing.T) {
	for _, sched := range schedulers() {
		t.Run(string(sched), func(t *testing.T) {
			unit := newTrackingUnit(0)
			unit.fail = func(int) error { return errors.New("always down") }
			eng, err := runner.NewEngine(runner.Options{
				Total:       10,
				Concurrency: 3,
				Rate:        1000,
				Scheduler:   sched,
				Unit:        unit,
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			s := eng.Run(context.Background())
			if s.Total != 10 || s.Successes != 0 || s.Failures != 10 {
				t.Fatalf("expected 0/10 of 10, got %+v", s)
			}
			if s.Latency != nil {
				t.Fatalf("expected absent latency stats, got %+v", s.Latency)
			}
		})
	}
}

func TestEngineAlternatingOutcomes(t *testing.T) {
	unit := newTrackingUnit(0)
	unit.fail = func(attempt int) error {
		if attempt%2 == 1 {
			return errors.New("odd attempts fail")
		}
		return nil
	}
	eng, err := runner.NewEngine(runner.Options{
		Total:       5,
		Concurrency: 1,
		Rate:        1000,
		Unit:        unit,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s := eng.Run(context.Background())
	if s.Successes != 3 || s.Failures != 2 {
		t.Fatalf("expected 3 successes and 2 failures, got %+v", s)
	}
}

func TestNewEngineConfigErrors(t *testing.T) {
	unit := newTrackingUnit(0)
	cases := []struct {
		name string
		opt  runner.Options
	}{
		{"zero concurrency", runner.Options{Total: 5, Concurrency: 0, Rate: 5, Unit: unit}},
		{"zero rate", runner.Options{Total: 5, Concurrency: 5, Rate: 0, Unit: unit}},
		{"negative total", runner.Options{Total: -1, Concurrency: 1, Rate: 1, Unit: unit}},
		{"missing unit", runner.Options{Total: 1, Concurrency: 1, Rate: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.NewEngine(tc.opt)
			var cfgErr *runner.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
		})
	}
}

// TestEngineRateGatingDominates runs N=20, C=4, R=5 against a 250ms window:
// the run needs at least (20/5 - 1) windows of wall time even though
// concurrency alone would finish far sooner.
func TestEngineRateGatingDominates(t *testing.T) {
	for _, sched := range schedulers() {
		t.Run(string(sched), func(t *testing.T) {
			window := 250 * time.Millisecond
			unit := newTrackingUnit(10 * time.Millisecond)
			eng, err := runner.NewEngine(runner.Options{
				Total:       20,
				Concurrency: 4,
				Rate:        5,
				Window:      window,
				Scheduler:   sched,
				Unit:        unit,
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			start := time.Now()
			s := eng.Run(context.Background())
			elapsed := time.Since(start)

			if minWall := 3 * window; elapsed < minWall {
				t.Fatalf("rate gate not enforced: finished in %s, expected >= %s", elapsed, minWall)
			}
			if s.Successes != 20 || s.Failures != 0 {
				t.Fatalf("expected 20 successes, got %+v", s)
			}
			if s.Latency == nil {
				t.Fatal("expected latency stats")
			}
			if s.Latency.Mean < 10*time.Millisecond || s.Latency.Mean > 100*time.Millisecond {
				t.Fatalf("mean latency implausible: %s", s.Latency.Mean)
			}
		})
	}
}

func TestEngineZeroTotalCompletesImmediately(t *testing.T) {
	unit := newTrackingUnit(0)
	eng, err := runner.NewEngine(runner.Options{Total: 0, Concurrency: 1, Rate: 1, Unit: unit})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s := eng.Run(context.Background())
	if s.Total != 0 || unit.calls != 0 {
		t.Fatalf("expected empty run, got %+v calls=%d", s, unit.calls)
	}
	if s.Partial {
		t.Fatal("an empty run is complete, not partial")
	}
}

func TestEngineCancellationStopsAdmission(t *testing.T) {
	for _, sched := range schedulers() {
		t.Run(string(sched), func(t *testing.T) {
			unit := newTrackingUnit(20 * time.Millisecond)
			eng, err := runner.NewEngine(runner.Options{
				Total:       1000,
				Concurrency: 2,
				Rate:        50,
				Window:      100 * time.Millisecond,
				Scheduler:   sched,
				Unit:        unit,
			})
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
			defer cancel()
			s := eng.Run(ctx)
			if s.Total >= 1000 {
				t.Fatalf("cancellation did not stop admission: %d outcomes", s.Total)
			}
			if !s.Partial {
				t.Fatal("expected a partial summary after cancellation")
			}
		})
	}
}

func TestEnginePanicBecomesFailureOutcome(t *testing.T) {
	unit := runner.WorkUnitFunc(func(ctx context.Context, attempt int) (int, error) {
		if attempt == 1 {
			panic("unit exploded")
		}
		return 200, nil
	})
	eng, err := runner.NewEngine(runner.Options{Total: 3, Concurrency: 1, Rate: 1000, Unit: unit})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s := eng.Run(context.Background())
	if s.Total != 3 || s.Failures != 1 || s.Successes != 2 {
		t.Fatalf("expected panic captured as single failure, got %+v", s)
	}
}

type countingLogger struct {
	mu    sync.Mutex
	count int
}

func (c *countingLogger) LogFailure(error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func TestWithLoggingReportsFailuresOnly(t *testing.T) {
	logger := &countingLogger{}
	unit := runner.WithLogging(runner.WorkUnitFunc(func(ctx context.Context, attempt int) (int, error) {
		if attempt%2 == 0 {
			return 0, errors.New("even attempts fail")
		}
		return 200, nil
	}), logger)

	eng, err := runner.NewEngine(runner.Options{Total: 6, Concurrency: 2, Rate: 1000, Unit: unit})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.Run(context.Background())
	if logger.count != 3 {
		t.Fatalf("expected 3 logged failures, got %d", logger.count)
	}
}
