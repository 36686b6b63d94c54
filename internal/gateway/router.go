// Package gateway is the public-facing surface: the session API
// consumed by the web front-end, the per-session file service, and the
// streaming proxy that splices browser connections through to each
// session's websocket bridge.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskwire/deskd/internal/client"
)

// Router exposes the public API backed by the internal control API.
type Router struct {
	api *client.Client
}

func NewRouter(api *client.Client) *Router {
	return &Router{api: api}
}

// Handler returns the public http.Handler.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/api/health", r.handleHealth)
	g.POST("/api/session", r.handleCreate)
	g.GET("/api/session/:id", r.handleGet)
	g.DELETE("/api/session/:id", r.handleDelete)
	g.POST("/api/session/:id/activity", r.handleActivity)
	g.GET("/api/session/:id/ws", r.handleWS)
	g.GET("/api/session/:id/files", r.handleListFiles)
	g.POST("/api/session/:id/upload", r.handleUpload)
	g.GET("/api/session/:id/download/:name", r.handleDownload)
	g.GET("/api/session/:id/download-latest", r.handleDownloadLatest)
	g.GET("/api/session/:id/download-zip", r.handleDownloadZip)
	g.DELETE("/api/session/:id/files/:name", r.handleDeleteFile)
	return g
}

// NewServer starts the gateway on addr. Write timeout is left at zero:
// proxied streaming connections and large downloads live longer than
// any sane fixed limit.
func NewServer(addr string, api *client.Client) *http.Server {
	r := NewRouter(api)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleCreate(c *gin.Context) {
	s, err := r.api.CreateSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session, please retry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": s.SessionID,
		"wsPort":    s.WSPort,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleGet(c *gin.Context) {
	s, err := r.api.GetSession(c.Param("id"))
	if err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (r *Router) handleDelete(c *gin.Context) {
	if err := r.api.DeleteSession(c.Param("id")); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

func (r *Router) handleActivity(c *gin.Context) {
	if err := r.api.TouchActivity(c.Param("id")); err != nil {
		writeClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeClientError(c *gin.Context, err error) {
	if errors.Is(err, client.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "Session service unavailable"})
}
