package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/handler"
)

type options struct {
	status      int
	contentType string
	headers     http.Header
	bodyOpts    []body.Option
	sinkOpts    []body.HTTPSinkOption
	cfg         *body.Config
}

// Option configures a forwarded response.
type Option func(*options)

// WithStatus sets the status code. Defaults to 200.
func WithStatus(code int) Option {
	return func(o *options) {
		o.status = code
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) Option {
	return func(o *options) {
		o.contentType = ct
	}
}

// WithHeader adds a response header.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithBodyOptions passes options to the underlying body.Response.
func WithBodyOptions(opts ...body.Option) Option {
	return func(o *options) {
		o.bodyOpts = append(o.bodyOpts, opts...)
	}
}

// WithWriteTimeout bounds each chunk write. A write that times out aborts the
// response.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.sinkOpts = append(o.sinkOpts, body.WithWriteTimeout(d))
	}
}

// WithConfig applies chunk size, write timeout and log level from cfg.
func WithConfig(cfg body.Config) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

func newOptions(opts []Option) *options {
	o := &options{headers: make(http.Header)}
	for _, opt := range opts {
		opt(o)
	}
	if o.status == 0 {
		o.status = http.StatusOK
	}
	return o
}

func (o *options) newBody(w http.ResponseWriter, r *http.Request) (*body.Response, error) {
	if o.cfg == nil {
		return body.New(body.NewHTTPSink(w, r, o.sinkOpts...), o.bodyOpts...)
	}
	sinkOpts := append([]body.HTTPSinkOption{body.WithWriteTimeout(o.cfg.WriteTimeout)}, o.sinkOpts...)
	return body.NewFromConfig(body.NewHTTPSink(w, r, sinkOpts...), *o.cfg, o.bodyOpts...)
}

// Forward calls build to assign the body and then forwards it. build may
// assign several times; only the last assignment is sent and the displaced
// ones are released. Errors returned by build are rendered as a status code.
// A client that goes away mid-body is not an error.
func Forward(build func(resp *body.Response) error, opts ...Option) handler.Response {
	o := newOptions(opts)

	return func(w http.ResponseWriter, r *http.Request) error {
		resp, err := o.newBody(w, r)
		if err != nil {
			return err
		}
		defer resp.Close()

		if build != nil {
			if err := build(resp); err != nil {
				return err
			}
		}

		h := w.Header()
		for k, vs := range o.headers {
			h[k] = append(h[k], vs...)
		}
		if o.contentType != "" {
			h.Set("Content-Type", o.contentType)
		}
		w.WriteHeader(o.status)

		if !bodyAllowed(o.status) || r.Method == http.MethodHead {
			return nil
		}

		if err := resp.Send(r.Context()); err != nil && !errors.Is(err, body.ErrSinkAborted) {
			return err
		}
		return nil
	}
}

// Body forwards a single value: bytes, text, a reader, a producer or anything
// the body registry recognises. Readers are consumed by the first request
// that renders the response.
func Body(value any, opts ...Option) handler.Response {
	return Forward(func(resp *body.Response) error {
		return resp.SetBody(value)
	}, opts...)
}

// String creates a text/plain response.
func String(content string, opts ...Option) handler.Response {
	return Body(content, append([]Option{WithContentType("text/plain; charset=utf-8")}, opts...)...)
}

// HTML creates a text/html response.
func HTML(content string, opts ...Option) handler.Response {
	return Body(content, append([]Option{WithContentType("text/html; charset=utf-8")}, opts...)...)
}

// Bytes creates a response with the given content type.
func Bytes(content []byte, contentType string, opts ...Option) handler.Response {
	return Body(content, append([]Option{WithContentType(contentType)}, opts...)...)
}

// NoContent creates a 204 No Content response.
func NoContent() handler.Response {
	return Status(http.StatusNoContent)
}

// Status creates an empty response with the given status code.
func Status(code int) handler.Response {
	return Forward(nil, WithStatus(code))
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
