// Package response renders HTTP responses whose bodies are forwarded through
// core/body.
//
// Every helper returns a handler.Response. Bodies are assigned to a
// body.Response and then forwarded chunk by chunk to the client, so a body
// that is replaced before it is sent is released at once, and a client that
// disconnects stops the producer behind the body.
//
//	mux.HandleFunc("GET /report", response.Handle(func(r *http.Request) handler.Response {
//		return response.Forward(func(resp *body.Response) error {
//			if cached, ok := cache.Lookup(r.URL.Query().Get("id")); ok {
//				return resp.SetBody(cached)
//			}
//			return resp.SetBody(body.ProducerFunc(buildReport))
//		}, response.WithContentType("text/csv"))
//	}))
//
// Render turns errors into status codes while the status line has not been
// sent yet; errors implementing StatusCode() int keep their status. Once the
// body is on the wire, failures are reported through the body's Reporter
// and logged.
//
// WebSocketBody forwards a body over a websocket connection, one frame per
// chunk.
package response
