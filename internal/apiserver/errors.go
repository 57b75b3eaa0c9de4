package apiserver

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// setCORSHeaders applies the Access-Control-Allow-Origin framing every
// response carries: echo the request's Origin when present (and mark the
// response as Origin-dependent via Vary), otherwise allow any origin.
func setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
}

// writeEnvelope pretty-prints v with a two-space indent and writes it with
// an explicit Content-Length, so a test harness asserting on the wire bytes
// sees exactly what it expects.
func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, v any) {
	setCORSHeaders(w, r)

	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		// v is always one of our own envelope shapes; this should never fire.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// successEnvelope preserves key order on the wire: status before data.
type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// errorEnvelope preserves key order on the wire: status before message.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// writeSuccessEnvelope emits {"status":"success","data":data}.
func (s *Server) writeSuccessEnvelope(w http.ResponseWriter, r *http.Request, data any) {
	writeEnvelope(w, r, http.StatusOK, successEnvelope{Status: "success", Data: data})
}

// writeErrorEnvelope emits {"status":"error","message":message} with the
// given status code.
func (s *Server) writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, errorEnvelope{Status: "error", Message: message})
}

// writeEmptyOK emits a bare 200 with no body, per the "requiredResponse
// absent" invariant.
func (s *Server) writeEmptyOK(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, r)
	w.WriteHeader(http.StatusOK)
}

// writeCORSPreflight answers an OPTIONS preflight with the permissive
// allow-list spec.md's CORS rules require.
func (s *Server) writeCORSPreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, r)
	w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "POST, GET, OPTIONS"))
	w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Content-Type, X-Bcot-Timestamp, Authorization"))
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func joinOrDefault(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}

// isPreflightRequest reports whether r is a CORS preflight: an OPTIONS
// request carrying either of the two access-control-request-* headers.
func isPreflightRequest(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		(r.Header.Get("Access-Control-Request-Headers") != "" ||
			r.Header.Get("Access-Control-Request-Method") != "")
}
