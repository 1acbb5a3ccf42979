package body

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dmitrymomot/relay/core/logger"
)

// DefaultChunkSize is the read buffer size of stream sources.
const DefaultChunkSize = 32 * 1024

// Adapter recognises a body value and returns the external stream behind it.
// Bytes and text are handled by the registry itself.
type Adapter func(v any) (Stream, bool)

// Registry maps body values to sources.
type Registry struct {
	mu        sync.RWMutex
	adapters  []Adapter
	chunkSize int
	unhandled func(error)
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithChunkSize sets the read buffer size of stream sources.
func WithChunkSize(size int) RegistryOption {
	return func(r *Registry) {
		if size > 0 {
			r.chunkSize = size
		}
	}
}

// WithUnhandled sets the hook for stream failures that nobody observed.
func WithUnhandled(fn func(error)) RegistryOption {
	return func(r *Registry) {
		r.unhandled = fn
	}
}

// WithRegistryLogger sets the logger used by the default unhandled hook.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAdapters registers adapters at construction time.
func WithAdapters(adapters ...Adapter) RegistryOption {
	return func(r *Registry) {
		r.adapters = append(r.adapters, adapters...)
	}
}

// NewRegistry creates a registry with the built-in adapters.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.unhandled == nil {
		l := r.logger
		r.unhandled = func(err error) {
			l.Error("unhandled body source failure",
				logger.Component("body"),
				logger.Error(err),
			)
		}
	}
	return r
}

// NewRegistryFromConfig creates a registry from Config.
func NewRegistryFromConfig(cfg Config, opts ...RegistryOption) *Registry {
	return NewRegistry(append([]RegistryOption{WithChunkSize(cfg.ChunkSize)}, opts...)...)
}

// Register adds an adapter. Registered adapters are consulted in order,
// after bytes and text and before the built-in stream adapters.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.mu.Lock()
	r.adapters = append(r.adapters, a)
	r.mu.Unlock()
}

// Adapt returns the source for v. A nil value yields a nil source (empty body).
// Adapt performs no I/O.
func (r *Registry) Adapt(v any) (Source, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Source:
		return val, nil
	case []byte:
		return newInertSource(KindBytes, val), nil
	case string:
		return newInertSource(KindText, []byte(val)), nil
	}

	r.mu.RLock()
	adapters := r.adapters
	r.mu.RUnlock()
	for _, adapt := range adapters {
		if stream, ok := adapt(v); ok && stream != nil {
			return r.stream(stream), nil
		}
	}

	switch val := v.(type) {
	case Stream:
		return r.stream(val), nil
	case ProducerFunc:
		if val == nil {
			return nil, unsupported(v)
		}
		return r.stream(newProducerStream(val)), nil
	case func(context.Context, io.Writer) error:
		if val == nil {
			return nil, unsupported(v)
		}
		return r.stream(newProducerStream(val)), nil
	case *http.Response:
		if val == nil {
			return nil, unsupported(v)
		}
		return r.stream(httpResponseStream(val)), nil
	case io.ReadCloser:
		return r.stream(&readCloserStream{ReadCloser: val}), nil
	case io.Reader:
		return r.stream(&readerStream{r: val}), nil
	}

	return nil, unsupported(v)
}

func (r *Registry) stream(s Stream) Source {
	return newStreamSource(s, r.chunkSize, r.unhandled)
}
