package body

import "context"

// Sink is the destination of response bytes.
type Sink interface {
	// Write delivers one chunk. It returns once the sink has accepted it.
	Write(ctx context.Context, chunk []byte) error
	// OnAbort registers fn to run once the sink is closed by its peer or
	// transport (client disconnect, timeout). The returned stop function
	// deregisters fn and reports whether it did so before fn ran.
	OnAbort(fn func()) (stop func() bool)
	// Closed reports whether the sink was aborted.
	Closed() bool
}

// Reporter receives the terminal error of the active body. It is called at
// most once per errored session and never for aborts or superseded bodies.
type Reporter func(ctx context.Context, err error)
