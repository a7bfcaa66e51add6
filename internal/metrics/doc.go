// Package metrics aggregates per-attempt outcomes into run statistics.
//
// The central [Aggregator] consumes one [Outcome] per work unit execution and
// derives a [Summary]: success/failure counts, latency min/max/mean plus
// HdrHistogram percentiles over successful outcomes, status code buckets, and
// an error breakdown.
//
//	agg := metrics.NewAggregator(total)
//	agg.Start()
//	// from any goroutine:
//	agg.Record(metrics.Outcome{Attempt: i, Elapsed: latency, Err: err})
//	// once, at the end:
//	summary := agg.Summarize(agg.Elapsed())
//
// The summary is order-independent: it is computed from the full multiset of
// recorded outcomes, never incrementally in a way sensitive to arrival order.
// Latency statistics cover successful outcomes only and are absent (nil)
// when every attempt failed.
package metrics
