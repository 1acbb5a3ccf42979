package async

import (
	"context"
	"sync"
	"time"
)

// ExecFuture is the handle of a function running on its own goroutine.
// It completes once the function returns.
type ExecFuture struct {
	err  error
	once sync.Once
	done chan struct{}
}

// Await blocks until the function returns and yields its error.
func (f *ExecFuture) Await() error {
	<-f.done
	return f.err
}

// AwaitWithTimeout is Await bounded by timeout. It returns ErrTimeout if the
// function is still running when the timeout elapses; the function keeps running.
func (f *ExecFuture) AwaitWithTimeout(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-f.done:
		return f.err
	case <-t.C:
		return ErrTimeout
	}
}

// Done is closed when the function has returned.
func (f *ExecFuture) Done() <-chan struct{} {
	return f.done
}

// IsComplete reports without blocking whether the function has returned.
func (f *ExecFuture) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Exec runs fn(ctx, param) on a new goroutine.
// If ctx is already done, fn is not called and the future yields ctx.Err().
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *ExecFuture {
	f := &ExecFuture{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		// Early exit prevents goroutine leak when context is pre-canceled
		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		err := fn(ctx, param)
		f.once.Do(func() {
			f.err = err
		})
	}()

	return f
}
