package runner

import (
	"context"
	"fmt"
)

// WorkUnit performs one externally-defined unit of load. Implementations
// should return an error for failed attempts; the returned status code is
// zero when the protocol has no status concept.
type WorkUnit interface {
	Execute(ctx context.Context, attempt int) (status int, err error)
}

// WorkUnitFunc adapts a function to the WorkUnit interface.
type WorkUnitFunc func(ctx context.Context, attempt int) (int, error)

func (f WorkUnitFunc) Execute(ctx context.Context, attempt int) (int, error) {
	return f(ctx, attempt)
}

// StatusError reports a protocol-level failure carrying a status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the code for aggregation without an import cycle.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// FailureLogger logs failed attempts.
type FailureLogger interface {
	LogFailure(err error)
}

// loggingUnit wraps a WorkUnit to log failures.
type loggingUnit struct {
	inner  WorkUnit
	logger FailureLogger
}

// WithLogging wraps a WorkUnit so every failed attempt is reported to logger.
func WithLogging(unit WorkUnit, logger FailureLogger) WorkUnit {
	if logger == nil {
		return unit
	}
	return &loggingUnit{inner: unit, logger: logger}
}

func (l *loggingUnit) Execute(ctx context.Context, attempt int) (int, error) {
	status, err := l.inner.Execute(ctx, attempt)
	if err != nil {
		l.logger.LogFailure(err)
	}
	return status, err
}
