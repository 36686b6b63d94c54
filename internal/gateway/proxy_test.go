package gateway

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/deskwire/deskd/internal/client"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoBackend stands in for the session's websocket bridge: it upgrades
// and echoes every message back.
func echoBackend(t *testing.T) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return srv, port
}

func setupProxy(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	_, port := echoBackend(t)
	api := stubInternalAPI(t, t.TempDir(), port)
	gw := httptest.NewServer(NewRouter(client.New(api.URL, time.Second)).Handler())
	t.Cleanup(gw.Close)
	return gw.URL
}

func TestProxyRelaysBytesBothWays(t *testing.T) {
	gwURL := setupProxy(t)
	wsURL := "ws" + strings.TrimPrefix(gwURL, "http") + "/api/session/" + testSessionID + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial through gateway: %v (resp=%v)", err, resp)
	}
	defer func() { _ = conn.Close() }()

	for _, msg := range []string{"hello", "world", strings.Repeat("x", 4096)} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, got, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != msg {
			t.Fatalf("round trip mismatch: sent %d bytes, got %d", len(msg), len(got))
		}
	}
}

func TestProxyUnknownSessionClosesConnection(t *testing.T) {
	gwURL := setupProxy(t)
	wsURL := "ws" + strings.TrimPrefix(gwURL, "http") + "/api/session/doesnotexist/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial for unknown session should fail without a handshake")
	}
}

func TestProxyDeadBridge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// Reserve a port and close it so the bridge dial fails.
	backend, port := echoBackend(t)
	backend.Close()

	api := stubInternalAPI(t, t.TempDir(), port)
	gw := httptest.NewServer(NewRouter(client.New(api.URL, time.Second)).Handler())
	t.Cleanup(gw.Close)

	wsURL := "ws" + strings.TrimPrefix(gw.URL, "http") + "/api/session/" + testSessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial should fail when the bridge is not listening")
	}
}
