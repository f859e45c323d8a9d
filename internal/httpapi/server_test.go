package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ngocvo/retailbot/internal/catalog"
	"github.com/ngocvo/retailbot/internal/config"
	"github.com/ngocvo/retailbot/internal/genai"
	"github.com/ngocvo/retailbot/internal/observability"
	"github.com/ngocvo/retailbot/internal/pipeline"
	"github.com/ngocvo/retailbot/internal/responder"
	"github.com/ngocvo/retailbot/internal/session"
	"github.com/ngocvo/retailbot/internal/speech"
)

type wsEvent struct {
	Event   string `json:"event"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

func newTestServer(t *testing.T, namespace string, model genai.Client, stt speech.STTProvider) (*httptest.Server, *session.Manager) {
	t.Helper()

	metrics := observability.NewMetrics(namespace)
	sessions := session.NewManager(10, time.Minute)
	lookup := catalog.NewLookup(catalog.NewSeededMemoryStore(), 5)
	pl := pipeline.New(lookup, responder.New(model), stt, metrics)

	srv := New(config.Config{BindAddr: ":0"}, sessions, pl, metrics, "in-memory")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sessions
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func sendJSON(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write %q: %v", payload, err)
	}
}

func TestWSTextMessageReply(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("Dạ, sữa tươi Vinamilk giá 32,000 VND ạ.")
	ts, sessions := newTestServer(t, "test_ws_text", mock, nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"text_message","text":"Giá sữa tươi Vinamilk"}`)

	ev := readEvent(t, conn)
	if ev.Event != "chat_message" || ev.Role != "chatbot" {
		t.Fatalf("event = %+v, want chatbot chat_message", ev)
	}
	if !strings.Contains(ev.Message, "32,000 VND") {
		t.Fatalf("message = %q, want grounded reply", ev.Message)
	}

	if sessions.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1 while connected", sessions.ActiveCount())
	}
}

func TestWSMalformedJSON(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("vâng ạ")
	ts, _ := newTestServer(t, "test_ws_badjson", mock, nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `not-json`)

	ev := readEvent(t, conn)
	if ev.Event != "error" || !strings.HasPrefix(ev.Message, "Invalid JSON:") {
		t.Fatalf("event = %+v, want Invalid JSON error", ev)
	}

	// The connection survives a malformed frame.
	sendJSON(t, conn, `{"event":"text_message","text":"xin chào"}`)
	ev = readEvent(t, conn)
	if ev.Event != "chat_message" || ev.Role != "chatbot" {
		t.Fatalf("event after recovery = %+v, want chatbot chat_message", ev)
	}
}

func TestWSUnknownEvent(t *testing.T) {
	ts, _ := newTestServer(t, "test_ws_unknown", genai.NewMock(), nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"bogus"}`)

	ev := readEvent(t, conn)
	if ev.Event != "error" || ev.Message != "Unknown event" {
		t.Fatalf("event = %+v, want Unknown event error", ev)
	}
}

func TestWSTextMessageWithoutText(t *testing.T) {
	ts, _ := newTestServer(t, "test_ws_notext", genai.NewMock(), nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"text_message","text":"   "}`)

	ev := readEvent(t, conn)
	if ev.Event != "error" || ev.Message != "No text provided" {
		t.Fatalf("event = %+v, want No text provided error", ev)
	}
}

func TestWSStopListeningAck(t *testing.T) {
	ts, _ := newTestServer(t, "test_ws_stopack", genai.NewMock(), nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"stop_listening"}`)

	if ev := readEvent(t, conn); ev.Event != "stop_listening_ack" {
		t.Fatalf("event = %+v, want stop_listening_ack", ev)
	}
}

func TestWSStartListeningSpeechCycle(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("Dạ có ạ, bên em còn hàng.")
	stt := speech.NewMockProvider("còn sữa tươi không")
	ts, _ := newTestServer(t, "test_ws_speech", mock, stt)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"start_listening"}`)

	if ev := readEvent(t, conn); ev.Event != "listening" {
		t.Fatalf("first event = %+v, want listening ack", ev)
	}
	echo := readEvent(t, conn)
	if echo.Event != "chat_message" || echo.Role != "user_stt" || echo.Message != "còn sữa tươi không" {
		t.Fatalf("second event = %+v, want user_stt echo", echo)
	}
	reply := readEvent(t, conn)
	if reply.Event != "chat_message" || reply.Role != "chatbot" {
		t.Fatalf("third event = %+v, want chatbot reply", reply)
	}
}

func TestWSDisconnectEndsSession(t *testing.T) {
	ts, sessions := newTestServer(t, "test_ws_disconnect", genai.NewMock(), nil)

	conn := dialWS(t, ts)
	sendJSON(t, conn, `{"event":"stop_listening"}`)
	_ = readEvent(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for sessions.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ActiveCount() = %d after disconnect, want 0", sessions.ActiveCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSExpiredSessionClosesConnection(t *testing.T) {
	metrics := observability.NewMetrics("test_ws_expiry")
	sessions := session.NewManager(10, 30*time.Millisecond)
	lookup := catalog.NewLookup(catalog.NewSeededMemoryStore(), 5)
	pl := pipeline.New(lookup, responder.New(genai.NewMock()), nil, metrics)

	srv := New(config.Config{}, sessions, pl, metrics, "in-memory")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	conn := dialWS(t, ts)

	expired := make(chan struct{}, 1)
	sessions.SetExpireHook(func(*session.Session) { expired <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor did not expire the session")
	}

	// The next inbound message must close the connection, not panic the
	// handler or produce a reply for a dead session.
	sendJSON(t, conn, `{"event":"text_message","text":"xin chào"}`)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err == nil {
		t.Fatalf("read after expiry = %+v, want closed connection", ev)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, "test_ws_health", genai.NewMock(), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp2.Body.Close()

	var body struct {
		Status         string `json:"status"`
		CatalogMode    string `json:"catalog_mode"`
		ActiveSessions int    `json:"active_sessions"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body.Status != "ready" || body.CatalogMode != "in-memory" {
		t.Fatalf("readyz body = %+v", body)
	}
}
