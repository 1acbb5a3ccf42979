// Package middleware provides net/http middleware for request IDs and
// request logging.
//
//	h := middleware.RequestID()(middleware.Logging(logger)(mux))
//
// The logging wrapper keeps http.ResponseController working (Flush, Hijack,
// write deadlines), so streamed bodies and websocket upgrades pass through
// unchanged. Responses are logged when the handler returns, with the status
// and the number of body bytes written.
package middleware
