package wsnotify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/catenis-emulator/internal/apiserver"
	"github.com/nerrad567/catenis-emulator/internal/infrastructure/config"
	"github.com/nerrad567/catenis-emulator/internal/infrastructure/logging"
	"github.com/nerrad567/catenis-emulator/internal/signer"
	"github.com/nerrad567/catenis-emulator/internal/state"
)

const testBasePath = "/api/0.13/"

// allowAllAuth is an Authenticator stub that ignores the request: it returns
// a fixed deviceID, or, when status is set, that fixed failure. Used by tests
// that don't care about signature verification itself (that's signer's job,
// tested separately).
type allowAllAuth struct {
	deviceID string
	status   int
	message  string
}

func (a *allowAllAuth) AuthenticateRequest(_ signer.Headers, _, _, _ string, _ []byte) (string, int, string) {
	if a.status != 0 {
		return "", a.status, a.message
	}
	return a.deviceID, 0, ""
}

func newTestServer(t *testing.T, auth Authenticator) (*Server, *httptest.Server) {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	notify := state.NewNotifyContextCell()
	s := NewServer(testBasePath, auth, notify, log)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, event string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + testBasePath + "notify/ws/" + event
}

func dial(t *testing.T, ts *httptest.Server, event string) (*websocket.Conn, *http.Response) {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{wsSubprotocol}}
	conn, resp, err := dialer.Dial(wsURL(ts, event), nil)
	if err != nil {
		t.Fatalf("dial failed: %v (resp: %v)", err, resp)
	}
	return conn, resp
}

func TestServeHTTP_RejectsUnknownEvent(t *testing.T) {
	_, ts := newTestServer(t, &allowAllAuth{deviceID: "dev1"})

	dialer := websocket.Dialer{Subprotocols: []string{wsSubprotocol}}
	_, resp, err := dialer.Dial(wsURL(ts, "not-a-real-event"), nil)
	if err == nil {
		t.Fatal("expected dial to fail for an unknown event name")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("resp = %v, want 400", resp)
	}
}

func TestServeHTTP_RequiresSubprotocol(t *testing.T) {
	_, ts := newTestServer(t, &allowAllAuth{deviceID: "dev1"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "new-msg-received"), nil)
	if err == nil {
		t.Fatal("expected dial without the subprotocol to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("resp = %v, want 400", resp)
	}
}

func TestChannel_AuthSuccess_ReceivesOpenFrame(t *testing.T) {
	_, ts := newTestServer(t, &allowAllAuth{deviceID: "drc3XdxNtzoucpw9xiRp"})

	conn, _ := dial(t, ts, "new-msg-received")
	defer conn.Close() //nolint:errcheck

	if err := conn.WriteJSON(map[string]string{
		"x-bcot-timestamp": "20260806T120000Z",
		"authorization":    "CTN1-HMAC-SHA256 Credential=drc3XdxNtzoucpw9xiRp/20260806/ctn1_request, Signature=abc",
	}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != "NOTIFICATION_CHANNEL_OPEN" {
		t.Fatalf("msg = %q, want NOTIFICATION_CHANNEL_OPEN", msg)
	}
}

func TestChannel_AuthFailure_ClosesWithProtocolError(t *testing.T) {
	_, ts := newTestServer(t, &allowAllAuth{status: http.StatusUnauthorized, message: "Authorization failed; invalid device or signature"})

	conn, _ := dial(t, ts, "new-msg-received")
	defer conn.Close() //nolint:errcheck

	if err := conn.WriteJSON(map[string]string{
		"x-bcot-timestamp": "20260806T120000Z",
		"authorization":    "CTN1-HMAC-SHA256 Credential=drc3XdxNtzoucpw9xiRp/20260806/ctn1_request, Signature=abc",
	}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %T (%v)", err, err)
	}
	if closeErr.Code != websocket.CloseProtocolError {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseProtocolError)
	}
	if closeErr.Text != "Authorization failed; invalid device or signature" {
		t.Errorf("close reason = %q", closeErr.Text)
	}
}

func TestChannel_MalformedAuthFrame_ClosesWithProtocolError(t *testing.T) {
	_, ts := newTestServer(t, &allowAllAuth{deviceID: "dev1"})

	conn, _ := dial(t, ts, "new-msg-received")
	defer conn.Close() //nolint:errcheck

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"not":"an auth frame"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %T (%v)", err, err)
	}
	if closeErr.Code != websocket.CloseProtocolError {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseProtocolError)
	}
	if closeErr.Text != "Invalid authentication message" {
		t.Errorf("close reason = %q", closeErr.Text)
	}
}

func TestDispatch_ImmediateDelivery(t *testing.T) {
	s, ts := newTestServer(t, &allowAllAuth{deviceID: "drc3XdxNtzoucpw9xiRp"})

	conn, _ := dial(t, ts, "new-msg-received")
	defer conn.Close() //nolint:errcheck
	authenticate(t, conn, "drc3XdxNtzoucpw9xiRp")
	readOpenFrame(t, conn)

	nc := state.NotifyContext{
		"drc3XdxNtzoucpw9xiRp": {
			state.EventNewMsgReceived: {Data: `{"messageId":"x"}`},
		},
	}
	if err := s.notify.Set(nc); err != nil {
		t.Fatalf("Set notify context: %v", err)
	}
	s.DispatchInstalled(nc)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"messageId":"x"}` {
		t.Fatalf("msg = %q", msg)
	}
}

func TestDispatch_DeferredDeliveryDedupesConcurrentChannels(t *testing.T) {
	s, ts := newTestServer(t, &allowAllAuth{deviceID: "drc3XdxNtzoucpw9xiRp"})

	conn1, _ := dial(t, ts, "new-msg-received")
	defer conn1.Close() //nolint:errcheck
	authenticate(t, conn1, "drc3XdxNtzoucpw9xiRp")
	readOpenFrame(t, conn1)

	conn2, _ := dial(t, ts, "new-msg-received")
	defer conn2.Close() //nolint:errcheck
	authenticate(t, conn2, "drc3XdxNtzoucpw9xiRp")
	readOpenFrame(t, conn2)

	nc := state.NotifyContext{
		"drc3XdxNtzoucpw9xiRp": {
			state.EventNewMsgReceived: {Data: `{"messageId":"y"}`, TimeoutMs: 20},
		},
	}
	if err := s.notify.Set(nc); err != nil {
		t.Fatalf("Set notify context: %v", err)
	}
	s.autoDispatch("drc3XdxNtzoucpw9xiRp", state.EventNewMsgReceived)
	s.autoDispatch("drc3XdxNtzoucpw9xiRp", state.EventNewMsgReceived) // should be a no-op de-dupe

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(msg) != `{"messageId":"y"}` {
			t.Fatalf("msg = %q", msg)
		}
	}

	// A second data frame would mean the duplicate autoDispatch armed its own timer.
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)) //nolint:errcheck
		if _, msg, err := conn.ReadMessage(); err == nil {
			t.Fatalf("unexpected second delivery: %q", msg)
		}
	}
}

func TestCloseAllClients(t *testing.T) {
	s, ts := newTestServer(t, &allowAllAuth{deviceID: "drc3XdxNtzoucpw9xiRp"})

	conn, _ := dial(t, ts, "new-msg-received")
	defer conn.Close() //nolint:errcheck
	authenticate(t, conn, "drc3XdxNtzoucpw9xiRp")
	readOpenFrame(t, conn)

	s.CloseAllClients()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %T (%v)", err, err)
	}
	if closeErr.Code != websocket.CloseGoingAway {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseGoingAway)
	}
	if closeErr.Text != "Connection closed by end user" {
		t.Errorf("close reason = %q", closeErr.Text)
	}
}

// TestChannel_RealAuthenticator_SignatureRoundTrip drives the handshake
// through the actual apiserver.Server.AuthenticateRequest implementation
// instead of the allowAllAuth stub, so the authFrame-to-signer.Headers
// header-key contract is exercised end-to-end: a correctly signed frame
// must authenticate, and a mismatched signature must be rejected.
func TestChannel_RealAuthenticator_SignatureRoundTrip(t *testing.T) {
	const deviceID = "drc3XdxNtzoucpw9xiRp"
	const secret = "super-secret-api-access-key"

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	credentials := state.NewCredentials()
	if err := credentials.Set([]state.DeviceCredential{{DeviceID: deviceID, APIAccessSecret: secret}}); err != nil {
		t.Fatalf("Set credentials: %v", err)
	}

	auth, err := apiserver.New(apiserver.Deps{
		Config: config.APIConfig{
			Host:       "127.0.0.1",
			Port:       0,
			APIVersion: "0.13",
			CORS: config.CORSConfig{
				AllowedMethods: []string{"POST", "GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Bcot-Timestamp", "Authorization"},
			},
		},
		Logger:      log,
		Credentials: credentials,
		HTTPContext: state.NewHTTPContextCell(),
	})
	if err != nil {
		t.Fatalf("apiserver.New: %v", err)
	}

	notify := state.NewNotifyContextCell()
	s := NewServer(testBasePath, auth, notify, log)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	t.Run("valid signature authenticates", func(t *testing.T) {
		conn, _ := dial(t, ts, "new-msg-received")
		defer conn.Close() //nolint:errcheck

		host := strings.TrimPrefix(ts.URL, "http://")
		rawURL := testBasePath + "notify/ws/new-msg-received"
		timestamp := time.Now().UTC().Format("20060102T150405Z")
		signDate := timestamp[:8]
		signature := signer.Sign(http.MethodGet, rawURL, host, timestamp, signDate, nil, secret)

		if err := conn.WriteJSON(map[string]string{
			"x-bcot-timestamp": timestamp,
			"authorization":    "CTN1-HMAC-SHA256 Credential=" + deviceID + "/" + signDate + "/ctn1_request, Signature=" + signature,
		}); err != nil {
			t.Fatalf("write auth frame: %v", err)
		}

		readOpenFrame(t, conn)
	})

	t.Run("wrong signature is rejected", func(t *testing.T) {
		conn, _ := dial(t, ts, "new-msg-received")
		defer conn.Close() //nolint:errcheck

		timestamp := time.Now().UTC().Format("20060102T150405Z")
		signDate := timestamp[:8]

		if err := conn.WriteJSON(map[string]string{
			"x-bcot-timestamp": timestamp,
			"authorization":    "CTN1-HMAC-SHA256 Credential=" + deviceID + "/" + signDate + "/ctn1_request, Signature=" + strings.Repeat("0", 64),
		}); err != nil {
			t.Fatalf("write auth frame: %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		_, _, err := conn.ReadMessage()
		closeErr, ok := err.(*websocket.CloseError)
		if !ok {
			t.Fatalf("expected a close error, got %T (%v)", err, err)
		}
		if closeErr.Code != websocket.CloseProtocolError {
			t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseProtocolError)
		}
	})
}

func authenticate(t *testing.T, conn *websocket.Conn, deviceID string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{
		"x-bcot-timestamp": "20260806T120000Z",
		"authorization":    "CTN1-HMAC-SHA256 Credential=" + deviceID + "/20260806/ctn1_request, Signature=abc",
	}); err != nil {
		t.Fatalf("write auth frame: %v", err)
	}
}

func readOpenFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read open frame: %v", err)
	}
	if string(msg) != "NOTIFICATION_CHANNEL_OPEN" {
		t.Fatalf("msg = %q, want NOTIFICATION_CHANNEL_OPEN", msg)
	}
}
