package body

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/relay/core/logger"
)

// Response is the body side of one HTTP response: handlers assign body
// values, and Send forwards the current one to the sink.
type Response struct {
	mu       sync.Mutex
	sink     Sink
	slot     *Slot
	coord    *Coordinator
	pipeline *Pipeline
}

type responseOptions struct {
	registry  *Registry
	reporter  Reporter
	logger    *slog.Logger
	onRelease func(Source)
	tp        trace.TracerProvider
	mp        metric.MeterProvider
}

// Option configures a Response.
type Option func(*responseOptions)

// WithRegistry sets the adapter registry. Defaults to NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(o *responseOptions) {
		o.registry = r
	}
}

// WithReporter sets the receiver of terminal errors of the active body.
// Defaults to logging them at error level.
func WithReporter(fn Reporter) Option {
	return func(o *responseOptions) {
		o.reporter = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *responseOptions) {
		o.logger = l
	}
}

// WithOnRelease is called once for every body source that leaves the
// response, inert bytes and text included. Only stream sources are
// cancelled on release; for inert ones the call is bookkeeping.
func WithOnRelease(fn func(Source)) Option {
	return func(o *responseOptions) {
		o.onRelease = fn
	}
}

// WithTelemetry sets OpenTelemetry providers. Nil providers fall back to the
// global ones.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(o *responseOptions) {
		o.tp = tp
		o.mp = mp
	}
}

// New creates a response that writes to sink.
func New(sink Sink, opts ...Option) (*Response, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	o := &responseOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = NewRegistry(WithRegistryLogger(o.logger))
	}

	coord := NewCoordinator(o.onRelease, o.logger)
	coord.tel = newTelemetry(o.tp, o.mp)

	return &Response{
		sink:     sink,
		slot:     NewSlot(o.registry),
		coord:    coord,
		pipeline: NewPipeline(sink, coord, o.reporter, o.logger),
	}, nil
}

// NewFromConfig creates a response with a registry and logger built from cfg.
// Options override the config-derived values.
func NewFromConfig(sink Sink, cfg Config, opts ...Option) (*Response, error) {
	l := logger.New(logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	base := []Option{
		WithLogger(l),
		WithRegistry(NewRegistryFromConfig(cfg, WithRegistryLogger(l))),
	}
	return New(sink, append(base, opts...)...)
}

// SetBody makes v the body. The previous body is retired before SetBody
// returns, and no chunk of it is written afterwards; a chunk write already
// in progress is waited for. Assigning the
// current value again does nothing. Unsupported values return
// ErrUnsupportedType and leave the current body in place.
func (r *Response) SetBody(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.slot.Assign(v)
	if err != nil {
		return err
	}
	if prev != nil {
		r.coord.Retire(prev)
	}
	return nil
}

// ClearBody removes the body, retiring it.
func (r *Response) ClearBody() {
	_ = r.SetBody(nil)
}

// Kind reports the kind of the current body.
func (r *Response) Kind() Kind {
	return r.slot.Kind()
}

// Generation reports how many times the body was assigned.
func (r *Response) Generation() uint64 {
	return r.slot.Generation()
}

// Send forwards the current body and blocks until forwarding ends. If the
// body is replaced while it is being forwarded, forwarding continues with the
// replacement. It returns nil on completion or when there is no body,
// ErrSinkAborted if the sink went away, and the reported error otherwise.
func (r *Response) Send(ctx context.Context) error {
	for {
		s := r.pipeline.Begin(ctx, r.slot)
		err := s.Wait()
		if s.State() == StateIdle {
			return nil
		}
		if !IsStale(err) {
			return err
		}
		if _, _, ok := r.slot.Current(); !ok {
			return nil
		}
	}
}

// Begin starts forwarding without waiting. See Pipeline.Begin.
func (r *Response) Begin(ctx context.Context) *Session {
	return r.pipeline.Begin(ctx, r.slot)
}

// Close releases the body without sending it. Safe to call after Send.
func (r *Response) Close() {
	r.ClearBody()
}
