package body

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPSink writes body chunks to an http.ResponseWriter and flushes after
// each one. Cancellation of the request context is an abort, and so is any
// failed write or flush, including an expired write deadline.
type HTTPSink struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	ctx          context.Context
	abort        context.CancelFunc
	writeTimeout time.Duration
}

// HTTPSinkOption configures an HTTPSink.
type HTTPSinkOption func(*HTTPSink)

// WithWriteTimeout bounds every chunk write. Expiry aborts the sink.
func WithWriteTimeout(d time.Duration) HTTPSinkOption {
	return func(s *HTTPSink) {
		s.writeTimeout = d
	}
}

// NewHTTPSink creates a sink bound to the request's lifetime.
func NewHTTPSink(w http.ResponseWriter, r *http.Request, opts ...HTTPSinkOption) *HTTPSink {
	ctx, cancel := context.WithCancel(r.Context())
	s := &HTTPSink{
		w:     w,
		rc:    http.NewResponseController(w),
		ctx:   ctx,
		abort: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSink) Write(ctx context.Context, chunk []byte) error {
	if s.Closed() {
		return ErrSinkAborted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.writeTimeout > 0 {
		// Recorders and some middleware writers cannot set deadlines.
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	// A failed write or flush means the connection is gone.
	if _, err := s.w.Write(chunk); err != nil {
		s.abort()
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.abort()
		return err
	}
	return nil
}

func (s *HTTPSink) OnAbort(fn func()) func() bool {
	return context.AfterFunc(s.ctx, fn)
}

func (s *HTTPSink) Closed() bool {
	return s.ctx.Err() != nil
}

// Abort closes the sink from the server side, e.g. on shutdown.
func (s *HTTPSink) Abort() {
	s.abort()
}
