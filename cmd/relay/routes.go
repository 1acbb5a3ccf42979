package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/relay/core/body"
	"github.com/dmitrymomot/relay/core/handler"
	"github.com/dmitrymomot/relay/core/health"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/middleware"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/integration/database/redis"
	"github.com/dmitrymomot/relay/integration/storage/s3"
)

type deps struct {
	log  *slog.Logger
	body body.Config

	objects s3.S3Client
	bucket  string

	cache redis.Client
	chunk int64
}

type app struct {
	deps
	registry *body.Registry
}

func routes(d deps, checks ...func(context.Context) error) http.Handler {
	adapters := []body.Adapter{}
	if d.objects != nil {
		adapters = append(adapters, s3.Adapter(d.objects, d.bucket))
	}
	if d.cache != nil {
		adapters = append(adapters, redis.Adapter(d.cache, d.chunk))
	}
	a := &app{
		deps: d,
		registry: body.NewRegistryFromConfig(d.body,
			body.WithAdapters(adapters...),
			body.WithRegistryLogger(d.log),
			body.WithUnhandled(func(err error) {
				d.log.Warn("body failed after it was released", logger.Component("relay"), logger.Error(err))
			}),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", response.Handle(health.Liveness))
	mux.HandleFunc("GET /health/ready", response.Handle(health.Readiness(d.log, checks...)))
	mux.HandleFunc("GET /ping", response.Handle(health.NoContent))

	if d.objects != nil {
		mux.HandleFunc("GET /objects/{key...}", response.Handle(a.object))
	}
	if d.cache != nil {
		mux.HandleFunc("GET /cache/{key}", response.Handle(a.cached))
		mux.HandleFunc("GET /ws/cache/{key}", response.Handle(a.cachedWS))
	}

	logging := middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger:               d.log,
		Component:            "relay",
		SlowRequestThreshold: time.Minute,
		Skip: func(r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, "/health/") || r.URL.Path == "/ping"
		},
	})
	return middleware.RequestID()(logging(mux))
}

func (a *app) bodyOptions() []body.Option {
	return []body.Option{
		body.WithLogger(a.log),
		body.WithRegistry(a.registry),
		body.WithReporter(func(ctx context.Context, err error) {
			a.log.ErrorContext(ctx, "body failed mid-response", logger.Component("relay"), logger.Error(err))
		}),
	}
}

// object opens the download before answering so a missing key is a 404.
func (a *app) object(r *http.Request) handler.Response {
	obj := s3.Object{Bucket: a.bucket, Key: r.PathValue("key")}
	stream, err := s3.Open(r.Context(), a.objects, obj)
	if err != nil {
		if errors.Is(err, s3.ErrObjectNotFound) {
			return response.Error(response.ErrNotFound.WithError(err))
		}
		return response.Error(err)
	}

	info := stream.Info()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []response.Option{
		response.WithConfig(a.body),
		response.WithContentType(contentType),
		response.WithBodyOptions(a.bodyOptions()...),
	}
	if info.ETag != "" {
		opts = append(opts, response.WithHeader("ETag", info.ETag))
	}
	return response.Body(stream, opts...)
}

func (a *app) cached(r *http.Request) handler.Response {
	key := r.PathValue("key")
	n, err := a.cache.Exists(r.Context(), key).Result()
	if err != nil {
		return response.Error(response.ErrServiceUnavailable.WithError(err))
	}
	if n == 0 {
		return response.Error(response.ErrNotFound)
	}
	return response.Body(redis.Key(key),
		response.WithConfig(a.body),
		response.WithContentType("application/octet-stream"),
		response.WithBodyOptions(a.bodyOptions()...),
	)
}

func (a *app) cachedWS(r *http.Request) handler.Response {
	key := redis.Key(r.PathValue("key"))
	return response.WebSocketBody(func(resp *body.Response) error {
		return resp.SetBody(key)
	},
		response.WithWSWriteTimeout(a.body.WriteTimeout),
		response.WithWSBodyOptions(a.bodyOptions()...),
	)
}
