package response

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/handler"
)

// JSON creates an application/json response. The value is encoded while it
// is being sent, so encoding errors after the first chunk cannot change the
// status code.
func JSON(v any, opts ...Option) handler.Response {
	return JSONWithStatus(v, 0, opts...)
}

// JSONWithStatus creates an application/json response with a custom status.
// A zero status means 200, or 204 for a nil value.
func JSONWithStatus(v any, status int, opts ...Option) handler.Response {
	if status == 0 {
		status = http.StatusOK
		if v == nil {
			status = http.StatusNoContent
		}
	}

	base := []Option{
		WithContentType("application/json; charset=utf-8"),
		WithStatus(status),
	}
	return Body(body.ProducerFunc(func(_ context.Context, w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	}), append(base, opts...)...)
}

// Stream creates a chunked response produced by writer. Every write the
// producer makes is forwarded as it happens.
//
//	Stream(func(w io.Writer) error {
//		for i := range 100 {
//			fmt.Fprintf(w, "Data chunk %d\n", i)
//		}
//		return nil
//	})
func Stream(writer func(w io.Writer) error, opts ...Option) handler.Response {
	base := []Option{
		WithHeader("Cache-Control", "no-cache"),
		WithHeader("X-Content-Type-Options", "nosniff"),
	}
	return Forward(func(resp *body.Response) error {
		return resp.SetBody(body.ProducerFunc(func(_ context.Context, w io.Writer) error {
			return writer(w)
		}))
	}, append(base, opts...)...)
}

// StreamOption configures StreamJSON.
type StreamOption func(*streamJSONConfig)

type streamJSONConfig struct {
	onError func(context.Context, error)
	opts    []Option
}

// WithStreamErrorHandler is called for items that fail to encode. Such items
// are skipped.
func WithStreamErrorHandler(fn func(context.Context, error)) StreamOption {
	return func(c *streamJSONConfig) {
		c.onError = fn
	}
}

// WithStreamResponseOptions passes options to the forwarded response.
func WithStreamResponseOptions(opts ...Option) StreamOption {
	return func(c *streamJSONConfig) {
		c.opts = append(c.opts, opts...)
	}
}

// StreamJSON writes each item from the channel as one line of
// newline-delimited JSON until the channel is closed or the client leaves.
func StreamJSON(items <-chan any, opts ...StreamOption) handler.Response {
	cfg := &streamJSONConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	base := []Option{
		WithContentType("application/x-ndjson"),
		WithHeader("Cache-Control", "no-cache"),
		WithHeader("X-Content-Type-Options", "nosniff"),
	}
	return Forward(func(resp *body.Response) error {
		return resp.SetBody(body.ProducerFunc(func(ctx context.Context, w io.Writer) error {
			encoder := json.NewEncoder(w)
			for {
				select {
				case <-ctx.Done():
					return nil
				case item, ok := <-items:
					if !ok {
						return nil
					}
					if err := encoder.Encode(item); err != nil {
						if cfg.onError != nil {
							cfg.onError(ctx, fmt.Errorf("failed to encode item: %w", err))
						}
						continue
					}
				}
			}
		}))
	}, append(base, cfg.opts...)...)
}
