package body_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/relay/core/body"
)

var errStreamFailed = errors.New("stream failed")

// memSink collects chunks in memory and can be aborted like a disconnected client.
type memSink struct {
	ctx    context.Context
	cancel context.CancelFunc

	// delay is applied before every write; rejectAfter makes the n-th write
	// fail with errRejected while the sink stays open. onWrite runs inside
	// Write and must not assign bodies synchronously.
	delay       time.Duration
	rejectAfter int
	errRejected error
	onWrite     func(chunk []byte)

	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
}

func newMemSink() *memSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &memSink{ctx: ctx, cancel: cancel}
}

func (s *memSink) Write(ctx context.Context, chunk []byte) error {
	if s.Closed() {
		return body.ErrSinkAborted
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return body.ErrSinkAborted
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.writes++
	if s.rejectAfter > 0 && s.writes >= s.rejectAfter {
		s.mu.Unlock()
		return s.errRejected
	}
	s.buf.Write(chunk)
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook(chunk)
	}
	return nil
}

func (s *memSink) OnAbort(fn func()) func() bool {
	return context.AfterFunc(s.ctx, fn)
}

func (s *memSink) Closed() bool {
	return s.ctx.Err() != nil
}

func (s *memSink) Abort() {
	s.cancel()
}

func (s *memSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *memSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// fakeStream emits chunks at a fixed interval. With hold set it blocks after
// the last chunk until it is cancelled or fails. With failAfter set it fails
// asynchronously that long after being adapted, whether or not anyone reads.
type fakeStream struct {
	chunks    []string
	interval  time.Duration
	hold      bool
	failAfter time.Duration
	failErr   error
	// onRead runs at the start of the n-th Read.
	onRead func(n int32)

	mu         sync.Mutex
	idx        int
	cancelled  chan struct{}
	failed     chan struct{}
	cancelOnce sync.Once
	failOnce   sync.Once
	cancels    atomic.Int32
	reads      atomic.Int32
}

func newFakeStream(chunks ...string) *fakeStream {
	return &fakeStream{
		chunks:    chunks,
		failErr:   errStreamFailed,
		cancelled: make(chan struct{}),
		failed:    make(chan struct{}),
	}
}

func (s *fakeStream) Watch(fail func(error)) {
	if s.failAfter <= 0 {
		return
	}
	time.AfterFunc(s.failAfter, func() {
		s.failOnce.Do(func() {
			fail(s.failErr)
			close(s.failed)
		})
	})
}

func (s *fakeStream) Read(p []byte) (int, error) {
	n := s.reads.Add(1)
	if s.onRead != nil {
		s.onRead(n)
	}

	s.mu.Lock()
	idx := s.idx
	s.mu.Unlock()

	if idx >= len(s.chunks) {
		if !s.hold {
			return 0, io.EOF
		}
		select {
		case <-s.cancelled:
			return 0, body.ErrSourceCancelled
		case <-s.failed:
			return 0, s.failErr
		}
	}

	if s.interval > 0 {
		select {
		case <-time.After(s.interval):
		case <-s.cancelled:
			return 0, body.ErrSourceCancelled
		case <-s.failed:
			return 0, s.failErr
		}
	}

	s.mu.Lock()
	chunk := s.chunks[s.idx]
	s.idx++
	s.mu.Unlock()
	return copy(p, chunk), nil
}

func (s *fakeStream) Cancel() error {
	s.cancels.Add(1)
	s.cancelOnce.Do(func() { close(s.cancelled) })
	return nil
}

func (s *fakeStream) Cancelled() bool {
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

// recorder counts hook invocations.
type recorder struct {
	mu        sync.Mutex
	retired   map[body.Source]int
	order     []body.Source
	reported  []error
	unhandled []error
}

func newRecorder() *recorder {
	return &recorder{retired: make(map[body.Source]int)}
}

func (r *recorder) onRelease(src body.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retired[src]++
	r.order = append(r.order, src)
}

func (r *recorder) report(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, err)
}

func (r *recorder) onUnhandled(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unhandled = append(r.unhandled, err)
}

func (r *recorder) Retired() []body.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]body.Source(nil), r.order...)
}

func (r *recorder) RetireCount(src body.Source) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retired[src]
}

func (r *recorder) Reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.reported...)
}

func (r *recorder) Unhandled() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.unhandled...)
}

// newResponse wires a response to rec's hooks.
func newResponse(sink body.Sink, rec *recorder, opts ...body.Option) *body.Response {
	reg := body.NewRegistry(body.WithUnhandled(rec.onUnhandled))
	base := []body.Option{
		body.WithRegistry(reg),
		body.WithReporter(rec.report),
		body.WithOnRelease(rec.onRelease),
	}
	resp, err := body.New(sink, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	return resp
}
