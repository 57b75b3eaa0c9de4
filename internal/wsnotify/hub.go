package wsnotify

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/catenis-emulator/internal/infrastructure/logging"
	"github.com/nerrad567/catenis-emulator/internal/signer"
	"github.com/nerrad567/catenis-emulator/internal/state"
)

// wsSubprotocol is the only subprotocol this server will negotiate.
const wsSubprotocol = "notify.catenis.io"

// Authenticator is the capability WSNotificationServer needs from the API
// server: verifying a request's signing headers against the installed
// credentials registry. A zero statusCode means success.
type Authenticator interface {
	AuthenticateRequest(headers signer.Headers, host, method, rawURL string, body []byte) (deviceID string, statusCode int, message string)
}

// Server is the WebSocket notification subsystem. It is mounted on the
// ApiServer's own listener through its ServeHTTP method, handed to
// apiserver.Server as an http.Handler.
type Server struct {
	logger logging.Sink
	auth   Authenticator
	notify *state.NotifyContextCell

	index   *channelIndex
	pending *pendingDispatch

	upgrader    websocket.Upgrader
	pathPattern *regexp.Regexp
}

// NewServer creates a WebSocket notification server. basePath is the same
// "/api/<version>/" prefix the API server matches requests against; the
// upgrade path this server accepts is basePath + "notify/ws/<eventName>".
func NewServer(basePath string, auth Authenticator, notify *state.NotifyContextCell, logger logging.Sink) *Server {
	return &Server{
		logger:  logger,
		auth:    auth,
		notify:  notify,
		index:   newChannelIndex(),
		pending: newPendingDispatch(),
		upgrader: websocket.Upgrader{
			Subprotocols: []string{wsSubprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		pathPattern: regexp.MustCompile("^" + regexp.QuoteMeta(basePath) + `notify/ws/([^/]+)$`),
	}
}

// ServeHTTP implements http.Handler so this server can be injected directly
// into apiserver.Deps.NotifyWS.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m := s.pathPattern.FindStringSubmatch(r.URL.Path)
	if m == nil {
		http.NotFound(w, r)
		return
	}

	event := state.EventName(m[1])
	if !state.IsValidEventName(event) {
		http.Error(w, "unknown event name", http.StatusBadRequest)
		return
	}

	if !offersSubprotocol(r, wsSubprotocol) {
		http.Error(w, "missing or unsupported subprotocol", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "event", event)
		return
	}

	ch := newChannel(s, conn, event, r.Host, r.URL.RequestURI())
	s.logger.Debug("notification channel accepted", "channel_id", ch.id, "event", event)
	go ch.run()
}

// DispatchInstalled triggers delivery for every (deviceId, eventName) pair
// present in a freshly installed notify context. Call this right after
// state.NotifyContextCell.Set succeeds.
func (s *Server) DispatchInstalled(nc state.NotifyContext) {
	for deviceID, byEvent := range nc {
		for event := range byEvent {
			s.autoDispatch(deviceID, event)
		}
	}
}

// CloseAllClients closes every open channel with code 1001 and cancels every
// pending dispatch timer — the control plane's POST /notify-close operation.
func (s *Server) CloseAllClients() {
	for _, ch := range s.index.all() {
		ch.closeWithCode(websocket.CloseGoingAway, "Connection closed by end user")
	}
	s.pending.cancelAll()
}

func offersSubprotocol(r *http.Request, proto string) bool {
	for _, p := range websocket.Subprotocols(r) {
		if p == proto {
			return true
		}
	}
	return false
}

func dispatchKey(deviceID string, event state.EventName) string {
	return fmt.Sprintf("%s\x00%s", deviceID, event)
}
