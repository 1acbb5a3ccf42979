// Package handler defines Response, the unit of work of every HTTP handler
// in this module. Handlers build a Response and core/response renders it.
//
//	func download(r *http.Request) handler.Response {
//		return response.File("/srv/files/" + r.PathValue("name"))
//	}
package handler
