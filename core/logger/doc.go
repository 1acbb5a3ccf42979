// Package logger builds slog loggers and provides attribute helpers used
// across the module.
//
//	log := logger.New(
//		logger.WithProduction("relay"),
//		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
//	)
//
//	log.Error("body source failed",
//		logger.Component("body"),
//		logger.SessionID(id),
//		logger.Generation(gen),
//		logger.Error(err),
//	)
//
// Helpers that take optional values (Error, SessionID) return an empty
// slog.Attr for zero input, which slog drops, so call sites need no nil checks.
package logger
