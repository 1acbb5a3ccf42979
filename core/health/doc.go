// Package health provides liveness and readiness handlers.
//
//	mux.HandleFunc("GET /health/live", response.Handle(health.Liveness))
//	mux.HandleFunc("GET /health/ready", response.Handle(health.Readiness(
//		logger,
//		redis.Healthcheck(client),
//	)))
//	mux.HandleFunc("GET /ping", response.Handle(health.NoContent))
//
// Dependency checks have the func(context.Context) error signature.
package health
