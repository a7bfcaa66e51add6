package metrics

import "time"

// Outcome is the immutable record of one work unit execution. It is produced
// by the dispatcher and consumed exactly once by the Aggregator.
type Outcome struct {
	Attempt int           // attempt index in [0, total)
	Status  int           // protocol status code; 0 when not applicable
	Elapsed time.Duration // wall time of the execution
	Err     error         // nil marks success
}

// Success reports the work unit's own success judgment.
func (o Outcome) Success() bool { return o.Err == nil }
