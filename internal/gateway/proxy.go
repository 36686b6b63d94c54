package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskwire/deskd/internal/client"
	"github.com/deskwire/deskd/internal/metrics"
)

const dialTimeout = 5 * time.Second

// handleWS routes a streaming upgrade request to the session's bridge
// port. The gateway never parses the forwarded protocol: after looking
// the session up it hijacks the client TCP connection, replays the
// upgrade request to the bridge on loopback, and relays bytes in both
// directions until either side closes. Unknown session ids get their
// connection closed without any handshake.
func (r *Router) handleWS(c *gin.Context) {
	id := c.Param("id")

	sess, err := r.api.GetSession(id)
	if err != nil {
		if !errors.Is(err, client.ErrNotFound) {
			slog.Warn("proxy session lookup failed", "session", id, "error", err)
		}
		dropConnection(c.Writer)
		return
	}

	// Liveness hint only; a failed touch must not break the stream.
	go func() {
		if err := r.api.TouchActivity(id); err != nil {
			slog.Debug("proxy activity touch failed", "session", id, "error", err)
		}
	}()

	hj, ok := c.Writer.(http.Hijacker)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}
	clientConn, buf, err := hj.Hijack()
	if err != nil {
		slog.Warn("proxy hijack failed", "session", id, "error", err)
		return
	}
	defer func() { _ = clientConn.Close() }()

	backend, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", sess.WSPort), dialTimeout)
	if err != nil {
		// Bridge not listening: a dead stage surfacing as a dead stream.
		slog.Warn("proxy bridge dial failed", "session", id, "ws_port", sess.WSPort, "error", err)
		return
	}
	defer func() { _ = backend.Close() }()

	// Replay the upgrade request so the bridge performs the handshake
	// itself; from here on the gateway is a dumb pipe.
	if err := c.Request.Write(backend); err != nil {
		slog.Warn("proxy request replay failed", "session", id, "error", err)
		return
	}

	metrics.ProxyConnOpened()
	defer metrics.ProxyConnClosed()
	slog.Debug("proxy stream open", "session", id, "ws_port", sess.WSPort)

	done := make(chan struct{}, 2)
	go func() {
		n, _ := io.Copy(backend, buf)
		metrics.ProxyBytes("client_to_session", n)
		halfClose(backend)
		done <- struct{}{}
	}()
	go func() {
		n, _ := io.Copy(clientConn, backend)
		metrics.ProxyBytes("session_to_client", n)
		halfClose(clientConn)
		done <- struct{}{}
	}()
	<-done
	<-done
}

// dropConnection closes the underlying TCP connection without writing
// any HTTP response, so a rejected upgrade never completes a handshake.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		// Can't get at the raw connection: fall back to a plain error.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func halfClose(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
		return
	}
	_ = conn.Close()
}
