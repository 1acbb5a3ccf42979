// Package server runs an HTTP server with graceful shutdown for handlers that
// forward long response bodies.
//
// A plain http.Server either cuts every response at WriteTimeout or lets a
// slow stream hold shutdown forever. This server has no overall write timeout
// by default (the body sink applies per-write deadlines instead) and on
// shutdown it waits for open responses up to the shutdown timeout, then
// cancels their request contexts. Forwarding sessions see the cancellation as
// a client abort and release their sources.
//
// # Basic Usage
//
//	srv := server.New(":8080",
//		server.WithLogger(logger),
//		server.WithShutdownTimeout(10*time.Second),
//	)
//	if err := srv.Run(ctx, mux); err != nil {
//		log.Fatal(err)
//	}
//
// Run returns nil once ctx is cancelled and shutdown has finished.
//
// # Configuration
//
// Config loads from the environment:
//
//	cfg := config.MustLoad[server.Config]()
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(logger))
//
// Setting SERVER_TLS_CERT_FILE and SERVER_TLS_KEY_FILE serves HTTPS with TLS
// 1.2 or newer.
//
// # Lifecycle
//
// Runner wraps Run for errgroup-style coordination:
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Runner(ctx, mux))
package server
