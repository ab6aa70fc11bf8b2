package task

import "errors"

var (
	// ErrTransient marks failures worth retrying. Remote clients wrap it into
	// their own sentinels (for example a rate limit error) so RetryPolicy can
	// recognize them with errors.Is.
	ErrTransient = errors.New("transient failure")

	// ErrRetryExhausted is returned when every attempt failed transiently.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrTimeout is the reason attached to fallback results produced by a
	// TimeoutGuard. It never surfaces as a failure.
	ErrTimeout = errors.New("operation deadline exceeded")

	// ErrWorkerPanic wraps a panic recovered from a worker or operation.
	ErrWorkerPanic = errors.New("worker panicked")
)
