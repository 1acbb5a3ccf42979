// Package redis connects to Redis and serves stored string values as
// response bodies.
//
// Connect parses a redis:// or rediss:// URL and pings the server until it
// answers, backing off between attempts:
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  time.Second,
//		ConnectTimeout: 10 * time.Second,
//	})
//
// Healthcheck wraps a ping as a readiness check.
//
// # Blobs
//
// A Key assigned as a body is read with GETRANGE, one window at a time, so
// a large cached value is never held in memory in full. Register the adapter
// on the body registry:
//
//	reg := body.NewRegistry(body.WithAdapters(redis.Adapter(client, cfg.BlobChunkSize)))
//	h := response.Body(redis.Key("page:home"),
//		response.WithContentType("text/html; charset=utf-8"),
//		response.WithBodyOptions(body.WithRegistry(reg)),
//	)
//
// The key is checked with EXISTS on the first read; a missing key fails the
// stream with ErrBlobNotFound.
package redis
