package pipeline

// Status classifies a stage outcome.
type Status int

const (
	// StatusOK means the stage produced its value normally.
	StatusOK Status = iota
	// StatusDegraded means the stage produced a usable value on a reduced
	// path (fallback backend, partial data).
	StatusDegraded
	// StatusFailed means the stage produced no usable value.
	StatusFailed
)

// Result is the outcome of one stage.
type Result[T any] struct {
	Value  T
	Status Status
	Reason string
}

// Ok wraps a normal stage value.
func Ok[T any](v T) Result[T] { return Result[T]{Value: v, Status: StatusOK} }

// Degraded wraps a usable value produced on a reduced path.
func Degraded[T any](v T, reason string) Result[T] {
	return Result[T]{Value: v, Status: StatusDegraded, Reason: reason}
}

// Failed marks a stage that produced nothing usable.
func Failed[T any](reason string) Result[T] {
	return Result[T]{Status: StatusFailed, Reason: reason}
}

// Usable reports whether the result carries a value the orchestrator can
// continue with.
func (r Result[T]) Usable() bool { return r.Status != StatusFailed }
