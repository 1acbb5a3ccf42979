package handler

import "net/http"

// Response is a function that renders an HTTP response.
// It sets headers, the status code and writes the body. An error returned
// before the status line is sent becomes the response status; later errors
// are logged by the renderer.
type Response func(w http.ResponseWriter, r *http.Request) error
