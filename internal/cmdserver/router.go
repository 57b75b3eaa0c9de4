package cmdserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the control-plane route table. Unknown routes and
// method mismatches both answer with an empty 404 — this server has no
// catch-all matcher the way the data-plane ApiServer does.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	r.Get("/device-credentials", s.handleGetDeviceCredentials)
	r.Post("/device-credentials", s.handlePostDeviceCredentials)

	r.Get("/http-context", s.handleGetHTTPContext)
	r.Post("/http-context", s.handlePostHTTPContext)

	r.Get("/notify-context", s.handleGetNotifyContext)
	r.Post("/notify-context", s.handlePostNotifyContext)

	r.Post("/notify-close", s.handleNotifyClose)

	r.Get("/info", s.handleInfo)

	r.Post("/close", s.handleClose)

	return r
}
