package wsnotify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/catenis-emulator/internal/signer"
	"github.com/nerrad567/catenis-emulator/internal/state"
)

type channelState int

const (
	stateAwaitingAuth channelState = iota
	stateAuthenticated
	stateClosed
)

const (
	authDeadline    = 5 * time.Second
	heartbeatPeriod = 30 * time.Second
	pongWait        = heartbeatPeriod + 5*time.Second
	writeWait       = 10 * time.Second
)

// authFrame is the single JSON message a client must send immediately after
// the upgrade, carrying the same signing headers an authenticated HTTP
// request would use.
type authFrame struct {
	Timestamp     string `json:"x-bcot-timestamp"`
	Authorization string `json:"authorization"`
}

func (f authFrame) Get(key string) string {
	switch key {
	case "x-bcot-timestamp":
		return f.Timestamp
	case "authorization":
		return f.Authorization
	default:
		return ""
	}
}

// NotificationChannel is a single upgraded WebSocket connection tracked
// through its awaiting-auth / authenticated / closed lifecycle.
type NotificationChannel struct {
	id    string
	event state.EventName
	host  string
	url   string

	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex

	mu       sync.Mutex
	state    channelState
	deviceID string

	authTimer *time.Timer
	liveness  bool

	closeOnce sync.Once
}

func newChannel(s *Server, conn *websocket.Conn, event state.EventName, host, url string) *NotificationChannel {
	ch := &NotificationChannel{
		id:     uuid.NewString(),
		event:  event,
		host:   host,
		url:    url,
		conn:   conn,
		server: s,
		state:  stateAwaitingAuth,
	}
	ch.conn.SetPongHandler(func(string) error {
		ch.mu.Lock()
		ch.liveness = true
		ch.mu.Unlock()
		return ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	ch.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	return ch
}

// run drives the channel's full lifecycle: it arms the auth deadline, reads
// the single auth frame, and on success hands off to the read/heartbeat
// loops until the connection closes.
func (ch *NotificationChannel) run() {
	ch.authTimer = time.AfterFunc(authDeadline, func() {
		ch.mu.Lock()
		stillAwaiting := ch.state == stateAwaitingAuth
		ch.mu.Unlock()
		if stillAwaiting {
			ch.closeWithCode(websocket.CloseProtocolError, "Failed to receive authentication message")
		}
	})
	defer ch.cleanup()

	_, raw, err := ch.conn.ReadMessage()
	if err != nil {
		return
	}

	var frame authFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Timestamp == "" || frame.Authorization == "" {
		ch.closeWithCode(websocket.CloseProtocolError, "Invalid authentication message")
		return
	}

	deviceID, status, message := ch.server.auth.AuthenticateRequest(frame, ch.host, "GET", ch.url, nil)
	if status != 0 {
		code := websocket.CloseProtocolError
		if status == http.StatusInternalServerError {
			code = websocket.CloseInternalServerErr
		}
		ch.closeWithCode(code, message)
		return
	}

	ch.mu.Lock()
	if ch.authTimer != nil {
		ch.authTimer.Stop()
	}
	ch.state = stateAuthenticated
	ch.deviceID = deviceID
	ch.liveness = true
	ch.mu.Unlock()

	ch.server.index.insert(deviceID, ch.event, ch)
	ch.server.logger.Debug("notification channel authenticated", "channel_id", ch.id, "device_id", deviceID, "event", ch.event)

	ch.writeMu.Lock()
	ch.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	openErr := ch.conn.WriteMessage(websocket.TextMessage, []byte("NOTIFICATION_CHANNEL_OPEN"))
	ch.writeMu.Unlock()
	if openErr != nil {
		return
	}
	ch.server.autoDispatch(deviceID, ch.event)

	go ch.heartbeatLoop()
	ch.readPump()
}

// readPump discards any further client frames (this protocol is
// server-to-client only) until the connection errors or closes, which is
// the sole purpose of keeping the read loop alive: gorilla/websocket
// requires an active reader to observe control frames.
func (ch *NotificationChannel) readPump() {
	for {
		if _, _, err := ch.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ch *NotificationChannel) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for range ticker.C {
		ch.mu.Lock()
		if ch.state == stateClosed {
			ch.mu.Unlock()
			return
		}
		alive := ch.liveness
		ch.liveness = false
		ch.mu.Unlock()

		if !alive {
			ch.terminate()
			return
		}

		ch.writeMu.Lock()
		ch.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		err := ch.conn.WriteMessage(websocket.PingMessage, nil)
		ch.writeMu.Unlock()
		if err != nil {
			ch.terminate()
			return
		}
	}
}

// trySend delivers a single notification payload if the channel is
// currently authenticated, silently skipping otherwise.
func (ch *NotificationChannel) trySend(payload []byte) bool {
	ch.mu.Lock()
	authenticated := ch.state == stateAuthenticated
	ch.mu.Unlock()
	if !authenticated {
		return false
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	ch.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return ch.conn.WriteMessage(websocket.TextMessage, payload) == nil
}

// closeWithCode sends a close frame carrying code and reason, then closes the
// underlying connection without waiting for the peer's close reply.
func (ch *NotificationChannel) closeWithCode(code int, reason string) {
	ch.writeMu.Lock()
	deadline := time.Now().Add(writeWait)
	ch.conn.SetWriteDeadline(deadline)                                                     //nolint:errcheck
	ch.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)) //nolint:errcheck
	ch.writeMu.Unlock()
	ch.terminate()
}

// terminate closes the underlying connection abruptly, without a close
// handshake — used for liveness failures where the peer is presumed gone.
func (ch *NotificationChannel) terminate() {
	ch.conn.Close() //nolint:errcheck
}

func (ch *NotificationChannel) cleanup() {
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		if ch.authTimer != nil {
			ch.authTimer.Stop()
		}
		deviceID, event, was := ch.deviceID, ch.event, ch.state
		ch.state = stateClosed
		ch.mu.Unlock()

		if was == stateAuthenticated {
			ch.server.index.remove(deviceID, event, ch)
		}
		ch.conn.Close() //nolint:errcheck
		ch.server.logger.Debug("notification channel closed", "channel_id", ch.id)
	})
}

var _ signer.Headers = authFrame{}
