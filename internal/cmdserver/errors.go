package cmdserver

import (
	"encoding/json"
	"net/http"
)

// writeJSON pretty-prints v with a two-space indent, matching the envelope
// style the rest of this emulator's HTTP surfaces use.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError emits {"message": message} with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeEmpty emits a bare status with no body.
func writeEmpty(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}

// handleNotFound answers unknown routes and method mismatches with an empty
// 404, per spec.md §7's "Unknown route/method (control plane)" row.
func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
