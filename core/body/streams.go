package body

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

// ProducerFunc writes a body lazily. It starts on the first read, runs on its
// own goroutine and must return when ctx is cancelled. A non-nil return value
// fails the stream.
type ProducerFunc func(ctx context.Context, w io.Writer) error

// readCloserStream cancels by closing the underlying reader.
type readCloserStream struct {
	io.ReadCloser
	once sync.Once
}

func (s *readCloserStream) Cancel() error {
	var err error
	s.once.Do(func() { err = s.Close() })
	return err
}

// readerStream wraps a reader that owns no resources. Cancelling stops reads.
type readerStream struct {
	r         io.Reader
	cancelled atomic.Bool
}

func (s *readerStream) Read(p []byte) (int, error) {
	if s.cancelled.Load() {
		return 0, ErrSourceCancelled
	}
	return s.r.Read(p)
}

func (s *readerStream) Cancel() error {
	s.cancelled.Store(true)
	return nil
}

// producerStream runs a ProducerFunc behind an io.Pipe.
type producerStream struct {
	produce ProducerFunc

	start  sync.Once
	pr     *io.PipeReader
	pw     *io.PipeWriter
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	fail func(error)
}

func newProducerStream(fn ProducerFunc) *producerStream {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	return &producerStream{produce: fn, pr: pr, pw: pw, ctx: ctx, cancel: cancel}
}

func (s *producerStream) Watch(fail func(error)) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *producerStream) Read(p []byte) (int, error) {
	s.start.Do(func() {
		go s.run()
	})
	return s.pr.Read(p)
}

func (s *producerStream) run() {
	err := s.produce(s.ctx, s.pw)
	if err != nil {
		s.mu.Lock()
		fail := s.fail
		s.mu.Unlock()
		if fail != nil {
			fail(err)
		}
		_ = s.pw.CloseWithError(err)
		return
	}
	_ = s.pw.Close()
}

func (s *producerStream) Cancel() error {
	s.cancel()
	return s.pr.CloseWithError(ErrSourceCancelled)
}

// httpResponseStream forwards the body of an outbound fetch.
func httpResponseStream(resp *http.Response) Stream {
	if resp.Body == nil {
		return &readerStream{r: http.NoBody}
	}
	return &readCloserStream{ReadCloser: resp.Body}
}
