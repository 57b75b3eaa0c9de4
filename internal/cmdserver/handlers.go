package cmdserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/catenis-emulator/internal/state"
)

// decodeJSONBody enforces the application/json content type spec.md §4.3
// requires on every non-GET body and decodes it into v.
func decodeJSONBody(r *http.Request, v any) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return fmt.Errorf("content type must be application/json, got %q", contentType)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

// handleGetDeviceCredentials returns the installed credentials registry as
// a JSON array.
func (s *Server) handleGetDeviceCredentials(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.credentials.List())
}

// handlePostDeviceCredentials replaces the installed credentials registry.
func (s *Server) handlePostDeviceCredentials(w http.ResponseWriter, r *http.Request) {
	var creds []state.DeviceCredential
	if err := decodeJSONBody(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid device credentials")
		return
	}
	if err := s.credentials.Set(creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid device credentials")
		return
	}
	writeEmpty(w, http.StatusOK)
}

// handleGetHTTPContext returns the installed HttpContext, or null if none
// has been installed.
func (s *Server) handleGetHTTPContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.httpCtx.Get())
}

// handlePostHTTPContext installs a new HttpContext, replacing any prior one
// atomically.
func (s *Server) handlePostHTTPContext(w http.ResponseWriter, r *http.Request) {
	var ctx state.HttpContext
	if err := decodeJSONBody(r, &ctx); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid HTTP context")
		return
	}
	if err := s.httpCtx.Set(&ctx); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid HTTP context")
		return
	}
	writeEmpty(w, http.StatusOK)
}

// handleGetNotifyContext returns the installed NotifyContext.
func (s *Server) handleGetNotifyContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.notifyCtx.Snapshot())
}

// handlePostNotifyContext installs a new NotifyContext and immediately
// triggers dispatch for every (deviceId, eventName) pair it names, so a
// channel that is already authenticated and subscribed sees the new
// payload without having to reconnect.
func (s *Server) handlePostNotifyContext(w http.ResponseWriter, r *http.Request) {
	var nc state.NotifyContext
	if err := decodeJSONBody(r, &nc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notification context")
		return
	}
	if err := s.notifyCtx.Set(nc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notification context")
		return
	}
	s.notifyWS.DispatchInstalled(nc)
	writeEmpty(w, http.StatusOK)
}

// handleNotifyClose closes every authenticated WebSocket channel and cancels
// every pending deferred dispatch.
func (s *Server) handleNotifyClose(w http.ResponseWriter, _ *http.Request) {
	s.notifyWS.CloseAllClients()
	writeEmpty(w, http.StatusOK)
}

// handleInfo reports the emulator's build version.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, fmt.Sprintf("Catenis API Emulator (ver. %s)", s.appVersion))
}

// handleClose triggers a graceful shutdown: the API server is closed first,
// then this command server. The response is written before either close
// completes, satisfying spec.md §5's ordering guarantee.
func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request) {
	writeEmpty(w, http.StatusOK)

	go func() {
		if err := s.apiServer.Close(); err != nil {
			s.logger.Error("closing api server", "error", err)
		}
		if err := s.Close(); err != nil {
			s.logger.Error("closing command server", "error", err)
		}
		if s.onShutdown != nil {
			s.onShutdown()
		}
	}()
}
