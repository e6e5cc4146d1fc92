package ai

// Result is the outcome of one generator call: either a usable Value, or an
// Err together with the empty Value the generator degraded to. Generators
// never return a Go error past their boundary; callers check Failed.
type Result[T any] struct {
	Value T
	Err   *Error
}

// Success wraps a usable value.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps the degraded value produced after err.
func Failure[T any](empty T, err error) Result[T] {
	return Result[T]{Value: empty, Err: Classify(err)}
}

// Failed reports whether the generator degraded.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// ErrorMessage returns the failure message, or "" on success.
func (r Result[T]) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}
