// Package runner is the rate-limited bounded-concurrency dispatch engine.
//
// The [Engine] runs exactly Total invocations of a [WorkUnit] with at most
// Concurrency in flight, each invocation preceded by exactly one acquire on
// the admission gate. The rate limit and the concurrency cap are independent
// constraints; both hold simultaneously.
//
//	eng, err := runner.NewEngine(runner.Options{
//		Total:       100,
//		Concurrency: 8,
//		Rate:        20,
//		Unit:        myUnit,
//	})
//	if err != nil {
//		// *runner.ConfigError: nothing ran
//	}
//	summary := eng.Run(ctx)
//
// Two scheduling models are available behind the same options: a fixed
// worker pool fed by a central admission loop ([SchedulerWorkers]) and a
// goroutine-per-attempt model gated by a counting semaphore
// ([SchedulerSemaphore]). Outcomes flow into [metrics.Aggregator] in
// completion order; the final summary is order-independent.
//
// A failing work unit is recorded as a failed outcome and never aborts the
// run. Cancelling the context stops admission of new attempts; attempts
// already admitted run to completion and are counted.
package runner
