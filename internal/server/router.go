package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskwire/deskd/internal/metrics"
	"github.com/deskwire/deskd/internal/session"
)

// Router provides the internal control API over the session manager.
// Endpoints:
//
//	POST   /internal/sessions               create a session
//	GET    /internal/sessions/:id           fetch a session record
//	DELETE /internal/sessions/:id           tear a session down
//	POST   /internal/sessions/:id/activity  advance last-activity
//	GET    /healthz                         liveness
//	GET    /metrics                         Prometheus metrics
//
// This surface grants raw process-spawning capability and must only be
// reachable from the trusted network (in practice, inside the
// container or its pod).
type Router struct {
	mgr *session.Manager
}

func NewRouter(mgr *session.Manager) *Router {
	return &Router{mgr: mgr}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.POST("/internal/sessions", r.handleCreate)
	g.GET("/internal/sessions/:id", r.handleGet)
	g.DELETE("/internal/sessions/:id", r.handleDelete)
	g.POST("/internal/sessions/:id/activity", r.handleActivity)
	g.GET("/healthz", r.handleHealth)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, mgr *session.Manager) *http.Server {
	r := NewRouter(mgr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Session creation waits out readiness probes, so the write
		// timeout must cover the whole launch sequence.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type sessionResp struct {
	SessionID    string `json:"sessionId"`
	Display      int    `json:"display"`
	VNCPort      int    `json:"vncPort"`
	WSPort       int    `json:"wsPort"`
	WorkspaceDir string `json:"workspaceDir"`
	CreatedAt    string `json:"createdAt,omitempty"`
	LastActivity string `json:"lastActivity,omitempty"`
}

func toResp(rec session.Record, withTimes bool) sessionResp {
	resp := sessionResp{
		SessionID:    rec.SessionID,
		Display:      rec.Resources.Display,
		VNCPort:      rec.Resources.VNCPort,
		WSPort:       rec.Resources.WSPort,
		WorkspaceDir: rec.WorkspaceDir,
	}
	if withTimes {
		resp.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
		resp.LastActivity = rec.LastActivity.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func (r *Router) handleCreate(c *gin.Context) {
	rec, err := r.mgr.Create(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, toResp(rec, false))
}

func (r *Router) handleGet(c *gin.Context) {
	rec, err := r.mgr.Get(c.Param("id"))
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "Session not found"})
		return
	}
	writeJSON(c, http.StatusOK, toResp(rec, true))
}

func (r *Router) handleDelete(c *gin.Context) {
	if err := r.mgr.Delete(c.Param("id")); err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "Session not found"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"message": "Session deleted"})
}

func (r *Router) handleActivity(c *gin.Context) {
	if err := r.mgr.Touch(c.Param("id")); err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "Session not found"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "sessions": r.mgr.Len()})
}
