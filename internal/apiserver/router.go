package apiserver

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the catch-all handler chain. Unlike a conventional
// REST service, this server has no route table of its own: every path and
// method funnels through the same matcher against the installed
// HttpContext, except CORS preflight and the WebSocket upgrade path.
func (s *Server) buildRouter() http.Handler {
	notifyWSPattern := regexp.MustCompile("^" + regexp.QuoteMeta(s.basePath) + "notify/ws/[^/]+$")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case isPreflightRequest(r):
			s.writeCORSPreflight(w, r)
		case s.notifyWS != nil && r.Method == http.MethodGet && notifyWSPattern.MatchString(r.URL.Path):
			s.notifyWS.ServeHTTP(w, r)
		default:
			s.handleMatch(w, r)
		}
	})

	return r
}
