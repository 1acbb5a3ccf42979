package body

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/pkg/async"
)

// Session drains one body generation into the sink.
type Session struct {
	id     string
	gen    uint64
	src    Source
	future *async.ExecFuture

	mu      sync.Mutex
	state   State
	cause   error
	written int64
}

// ID is a random identifier for log correlation.
func (s *Session) ID() string { return s.id }

// Generation is the slot generation the session was started for.
func (s *Session) Generation() uint64 { return s.gen }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal cause: nil for Completed and Idle, ErrSinkAborted
// (or a *StaleSourceError) for Aborted, the reported error for Errored.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Written is the number of bytes accepted by the sink.
func (s *Session) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Wait blocks until the session is terminal and returns Err.
func (s *Session) Wait() error {
	if s.future == nil {
		return nil
	}
	_ = s.future.Await()
	return s.Err()
}

// WaitTimeout is Wait bounded by d. It returns async.ErrTimeout if the
// session is still draining.
func (s *Session) WaitTimeout(d time.Duration) error {
	if s.future == nil {
		return nil
	}
	if err := s.future.AwaitWithTimeout(d); errors.Is(err, async.ErrTimeout) {
		return err
	}
	return s.Err()
}

// Done is closed once the session is terminal.
func (s *Session) Done() <-chan struct{} {
	if s.future == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.future.Done()
}

func (s *Session) finish(state State, cause error) {
	s.mu.Lock()
	s.state = state
	s.cause = cause
	s.mu.Unlock()
}

func (s *Session) addWritten(n int) {
	s.mu.Lock()
	s.written += int64(n)
	s.mu.Unlock()
}

// Pipeline forwards the body held by a slot to a sink, one session at a time.
type Pipeline struct {
	sink     Sink
	coord    *Coordinator
	reporter Reporter
	logger   *slog.Logger
	tel      *telemetry

	mu     sync.Mutex
	active *Session
}

// NewPipeline creates a pipeline. A nil reporter logs reported errors.
func NewPipeline(sink Sink, coord *Coordinator, reporter Reporter, l *slog.Logger) *Pipeline {
	if l == nil {
		l = slog.Default()
	}
	if coord == nil {
		coord = NewCoordinator(nil, l)
	}
	p := &Pipeline{
		sink:     sink,
		coord:    coord,
		reporter: reporter,
		logger:   l,
		tel:      coord.tel,
	}
	if p.reporter == nil {
		p.reporter = func(ctx context.Context, err error) {
			l.ErrorContext(ctx, "body forwarding failed",
				logger.Component("body"),
				logger.Error(err),
			)
		}
	}
	return p
}

// State is Draining while a session is active and Idle otherwise.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return StateDraining
	}
	return StateIdle
}

// Begin starts draining the slot's current body. With an empty slot the
// returned session is already complete and stays Idle. If a session is
// still active, that session is returned instead of starting a second one.
// Cancelling ctx aborts the session.
func (p *Pipeline) Begin(ctx context.Context, slot *Slot) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.active
	}

	src, gen, ok := slot.Current()
	s := &Session{
		id:    uuid.NewString(),
		gen:   gen,
		src:   src,
		state: StateIdle,
	}
	if !ok {
		return s
	}

	s.state = StateDraining
	p.active = s
	// The drain loop watches ctx itself; the goroutine must run even when
	// ctx is already done so the session reaches a terminal state.
	s.future = async.Exec(context.WithoutCancel(ctx), s, func(context.Context, *Session) error {
		defer p.release(s)
		return p.drain(ctx, slot, s)
	})
	return s
}

func (p *Pipeline) release(s *Session) {
	p.mu.Lock()
	if p.active == s {
		p.active = nil
	}
	p.mu.Unlock()
}

func (p *Pipeline) drain(ctx context.Context, slot *Slot, s *Session) error {
	start := time.Now()
	ctx, span := p.tel.startSession(ctx, s.id, s.gen, s.src.Kind())

	aborted := make(chan struct{})
	var abortOnce sync.Once
	abort := func() {
		abortOnce.Do(func() {
			close(aborted)
			// Unblocks a read that is waiting on the source.
			p.coord.Retire(s.src)
		})
	}
	stopSink := p.sink.OnAbort(abort)
	defer stopSink()
	stopCtx := context.AfterFunc(ctx, abort)
	defer stopCtx()

	isAborted := func() bool {
		select {
		case <-aborted:
			return true
		default:
			return ctx.Err() != nil || p.sink.Closed()
		}
	}

	p.logger.DebugContext(ctx, "body session started",
		logger.Component("body"),
		logger.SessionID(s.id),
		logger.Generation(s.gen),
		logger.Kind(s.src.Kind().String()),
	)

	state, cause := p.loop(ctx, slot, s, isAborted)
	state, cause = p.settle(ctx, slot, s, state, cause)

	p.tel.endSession(ctx, span, state, s.Written(), cause)
	p.logger.DebugContext(ctx, "body session finished",
		logger.Component("body"),
		logger.SessionID(s.id),
		logger.Generation(s.gen),
		logger.State(state.String()),
		logger.BytesOut(s.Written()),
		logger.Duration(time.Since(start)),
		logger.Error(cause),
	)
	return cause
}

// loop pulls one chunk at a time and only asks for the next one after the
// sink accepted the previous write.
func (p *Pipeline) loop(ctx context.Context, slot *Slot, s *Session, isAborted func() bool) (State, error) {
	stale := func(err error) (State, error) {
		return StateAborted, &StaleSourceError{Generation: s.gen, Err: err}
	}

	for {
		if slot.Generation() != s.gen {
			return stale(nil)
		}
		if isAborted() {
			return StateAborted, ErrSinkAborted
		}

		chunk, err := s.src.Next(ctx)
		if slot.Generation() != s.gen {
			return stale(err)
		}
		if isAborted() {
			return StateAborted, ErrSinkAborted
		}
		if errors.Is(err, io.EOF) {
			return StateCompleted, nil
		}
		if err != nil {
			return StateErrored, &SourceError{Generation: s.gen, Kind: s.src.Kind(), Err: err}
		}

		current, err := slot.writeCurrent(s.gen, func() error {
			return p.sink.Write(ctx, chunk)
		})
		if !current {
			return stale(nil)
		}
		if err != nil {
			if slot.Generation() != s.gen {
				return stale(nil)
			}
			if isAborted() {
				return StateAborted, ErrSinkAborted
			}
			return StateErrored, fmt.Errorf("%w: %w", ErrSinkRejected, err)
		}
		s.addWritten(len(chunk))
		p.tel.wrote(ctx, len(chunk))
	}
}

// settle clears the slot if the session is still current, retires the
// session's source and reports errors of the current generation. A stale
// session's source was already retired when it was replaced.
func (p *Pipeline) settle(ctx context.Context, slot *Slot, s *Session, state State, cause error) (State, error) {
	_, current := slot.finalize(s.gen)
	p.coord.Retire(s.src)

	if !current {
		if !IsStale(cause) {
			cause = &StaleSourceError{Generation: s.gen, Err: cause}
		}
		s.finish(StateAborted, cause)
		return StateAborted, cause
	}

	s.finish(state, cause)
	if state == StateErrored {
		p.reporter(ctx, cause)
	}
	return state, cause
}
