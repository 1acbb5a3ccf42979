// Package async runs functions on their own goroutine and hands back a
// future that completes when the function returns.
//
//	future := async.Exec(ctx, session, drain)
//
//	// ... do other work ...
//
//	if err := future.AwaitWithTimeout(time.Second); errors.Is(err, async.ErrTimeout) {
//		log.Println("still draining")
//	}
//
// Done exposes the completion channel for select statements. Futures are safe
// for concurrent use; any number of goroutines may wait on the same future.
//
// If the context is cancelled before the goroutine starts the function, the
// function is skipped and the future yields the context's error. Callers that
// need the function to run regardless pass context.WithoutCancel.
package async
