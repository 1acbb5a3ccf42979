package response

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/relay/core/handler"
	"github.com/dmitrymomot/relay/core/logger"
)

// Render executes resp. If it fails before anything was written, the error
// is turned into a status code response; otherwise it is logged, since the
// status line is already on the wire.
func Render(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	sw := newStatusWriter(w)
	if resp == nil {
		resp = NoContent()
	}
	if err := resp(sw, r); err != nil {
		renderError(sw, r, err)
	}
}

// Handle adapts a response-producing function to http.HandlerFunc.
func Handle(fn func(r *http.Request) handler.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Render(w, r, fn(r))
	}
}

func renderError(w *statusWriter, r *http.Request, err error) {
	if w.Written() {
		slog.Default().ErrorContext(r.Context(), "response failed after headers were sent",
			logger.Component("response"),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		return
	}
	httpErr := convertToHTTPError(err)
	http.Error(w, httpErr.Message, httpErr.Status)
}
