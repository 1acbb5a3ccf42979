package body

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned synchronously by SetBody and Registry.Adapt
	// when no adapter recognises the value.
	ErrUnsupportedType = errors.New("body: unsupported body type")

	// ErrSinkAborted is the terminal cause of an aborted session.
	ErrSinkAborted = errors.New("body: sink aborted")

	// ErrSinkRejected wraps a failed sink write on a sink that is still open.
	ErrSinkRejected = errors.New("body: sink rejected write")

	// ErrSourceCancelled is returned by Next once a source has been cancelled.
	ErrSourceCancelled = errors.New("body: source cancelled")

	// ErrNilSink is returned when a response is created without a sink.
	ErrNilSink = errors.New("body: nil sink")
)

// SourceError is reported when the active source fails while it is being drained.
type SourceError struct {
	Generation uint64
	Kind       Kind
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("body: %s source failed (generation %d): %v", e.Kind, e.Generation, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// StaleSourceError marks a failure that belongs to a superseded generation.
// It is never passed to a Reporter.
type StaleSourceError struct {
	Generation uint64
	Err        error
}

func (e *StaleSourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("body: generation %d superseded", e.Generation)
	}
	return fmt.Sprintf("body: generation %d superseded: %v", e.Generation, e.Err)
}

func (e *StaleSourceError) Unwrap() error { return e.Err }

// IsStale reports whether err originates from a superseded body.
func IsStale(err error) bool {
	var stale *StaleSourceError
	return errors.As(err, &stale)
}

func unsupported(v any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}
