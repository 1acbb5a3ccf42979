package body

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
)

// Source produces the bytes of one body value.
//
// Implementations must be comparable (pointer types in practice): retirement
// is tracked per source instance.
type Source interface {
	// Next returns the next chunk, io.EOF at end of data, or the failure.
	// A chunk is only valid until the following call to Next.
	Next(ctx context.Context) ([]byte, error)
	// Cancel releases the source. It is idempotent and safe to call while
	// Next is in progress on another goroutine.
	Cancel()
	// Inert reports whether the source holds no external resources.
	Inert() bool
	// Observe attaches fn to the source's terminal error. A failure that is
	// already pending and was not handed to anyone is delivered immediately.
	Observe(fn func(error))
	// Kind is the body kind the source was adapted from.
	Kind() Kind
}

// Stream is an external byte stream with its own cancellation handle,
// e.g. a file, a network response body or an object store download.
type Stream interface {
	io.Reader
	Cancel() error
}

// Watcher is implemented by streams that can fail outside of Read, such as
// a stream fed by a background producer. The stream calls fail at most once.
type Watcher interface {
	Watch(fail func(error))
}

// inertSource serves a byte buffer or text as a single chunk.
type inertSource struct {
	kind Kind
	data []byte

	mu   sync.Mutex
	done bool
}

func newInertSource(kind Kind, data []byte) *inertSource {
	return &inertSource{kind: kind, data: data}
}

func (s *inertSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || len(s.data) == 0 {
		s.done = true
		return nil, io.EOF
	}
	s.done = true
	return s.data, nil
}

func (s *inertSource) Cancel()             {}
func (s *inertSource) Inert() bool         { return true }
func (s *inertSource) Observe(func(error)) {}
func (s *inertSource) Kind() Kind          { return s.kind }

// streamSource drains an external Stream in fixed-size chunks.
type streamSource struct {
	stream    Stream
	buf       []byte
	unhandled func(error)

	cancelOnce sync.Once

	mu        sync.Mutex
	cancelled bool
	err       error // first terminal failure
	handled   bool  // err was handed to an observer, a reader or the unhandled hook
	observers []func(error)
}

func newStreamSource(stream Stream, chunkSize int, unhandled func(error)) *streamSource {
	s := &streamSource{
		stream:    stream,
		buf:       make([]byte, chunkSize),
		unhandled: unhandled,
	}
	if w, ok := stream.(Watcher); ok {
		w.Watch(s.raise)
	}
	return s
}

func (s *streamSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.err != nil {
		s.handled = true
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
	if s.cancelled {
		s.mu.Unlock()
		return nil, ErrSourceCancelled
	}
	s.mu.Unlock()

	n, err := io.ReadAtLeast(s.stream, s.buf, 1)
	if n > 0 {
		return s.buf[:n], nil
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return nil, s.fail(err)
}

// fail records a read failure and returns the error the reader should see.
func (s *streamSource) fail(err error) error {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	err = s.err
	first := !s.handled
	s.handled = true
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	if first {
		for _, fn := range observers {
			fn(err)
		}
	}
	return err
}

// raise delivers a failure that happened outside of Next.
func (s *streamSource) raise(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	observers := slices.Clone(s.observers)
	toUnhandled := false
	switch {
	case len(observers) > 0:
		s.handled = true
	case s.cancelled:
		s.handled = true
		toUnhandled = true
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(err)
	}
	if toUnhandled && s.unhandled != nil {
		s.unhandled(err)
	}
}

func (s *streamSource) Cancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		orphan := s.err != nil && !s.handled && len(s.observers) == 0
		if orphan {
			s.handled = true
		}
		pending := s.err
		s.mu.Unlock()

		if orphan && s.unhandled != nil {
			s.unhandled(pending)
		}
		if err := s.stream.Cancel(); err != nil {
			s.raise(err)
		}
	})
}

func (s *streamSource) Observe(fn func(error)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	var pending error
	if s.err != nil && !s.handled {
		s.handled = true
		pending = s.err
	}
	s.mu.Unlock()

	if pending != nil {
		fn(pending)
	}
}

func (s *streamSource) Inert() bool { return false }
func (s *streamSource) Kind() Kind  { return KindStream }
