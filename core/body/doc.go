// Package body forwards response bodies to their destination.
//
// A handler assigns a body value to a Response: a byte slice, a string, or an
// external stream such as an io.ReadCloser, a ProducerFunc, an *http.Response
// or anything a registered Adapter recognises. Each assignment displaces the
// previous body and bumps a generation counter. Displaced bodies are retired:
// an observer is attached to the source first and only then is it cancelled,
// so a failure caused by the cancellation is absorbed instead of reaching the
// unhandled hook or the error reporter.
//
// Send drains the current body into a Sink, pulling one chunk at a time and
// asking for the next only after the sink accepted the previous one.
//
//	sink := body.NewHTTPSink(w, r)
//	resp, err := body.New(sink, body.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer resp.Close()
//
//	if err := resp.SetBody(file); err != nil {
//		return err
//	}
//	return resp.Send(r.Context())
//
// A session ends Completed, Errored or Aborted. Only Errored sessions of the
// current generation reach the Reporter. Aborts (client disconnects, write
// timeouts, cancelled contexts) and superseded bodies are never reported.
//
// Forwarding is instrumented with OpenTelemetry spans and counters through the
// global providers unless WithTelemetry is given.
package body
