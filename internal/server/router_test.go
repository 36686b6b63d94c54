//go:build !windows

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskwire/deskd/internal/alloc"
	"github.com/deskwire/deskd/internal/logger"
	"github.com/deskwire/deskd/internal/pipeline"
	"github.com/deskwire/deskd/internal/session"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sup := pipeline.NewSupervisor(pipeline.Commands{
		Xvfb:          "sleep 60",
		WindowManager: "sleep 60",
		App:           "sleep 60",
		VNC:           "sleep 60",
		Bridge:        "sleep 60",
	}, logger.Config{})
	sup.ProbeBudget = 20 * time.Millisecond
	mgr := session.NewManager(alloc.New(0, 0, 0), sup, t.TempDir(), nil)
	t.Cleanup(mgr.Shutdown)
	return NewRouter(mgr).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler) sessionResp {
	t.Helper()
	rec := doReq(t, h, http.MethodPost, "/internal/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp sessionResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("create response: %v", err)
	}
	return resp
}

func TestCreateReturnsAllocatedResources(t *testing.T) {
	h := setupRouter(t)
	resp := createSession(t, h)
	if resp.SessionID == "" {
		t.Fatal("missing sessionId")
	}
	if resp.Display == 0 || resp.VNCPort == 0 || resp.WSPort == 0 {
		t.Fatalf("missing resource numbers: %+v", resp)
	}
	if resp.WorkspaceDir == "" {
		t.Fatal("missing workspaceDir")
	}
}

func TestGetAfterCreate(t *testing.T) {
	h := setupRouter(t)
	created := createSession(t, h)

	rec := doReq(t, h, http.MethodGet, "/internal/sessions/"+created.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got sessionResp
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != created.SessionID || got.WSPort != created.WSPort {
		t.Fatalf("mismatch: %+v vs %+v", got, created)
	}
	if got.CreatedAt == "" || got.LastActivity == "" {
		t.Fatalf("timestamps missing: %+v", got)
	}
}

func TestGetUnknown(t *testing.T) {
	h := setupRouter(t)
	rec := doReq(t, h, http.MethodGet, "/internal/sessions/ffffffffffffffffffffffffffffffff")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	h := setupRouter(t)
	created := createSession(t, h)

	rec := doReq(t, h, http.MethodDelete, "/internal/sessions/"+created.SessionID)
	if rec.Code != http.StatusOK {
		t.Fatalf("first delete: expected 200, got %d", rec.Code)
	}
	rec = doReq(t, h, http.MethodDelete, "/internal/sessions/"+created.SessionID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestActivityTouch(t *testing.T) {
	h := setupRouter(t)
	created := createSession(t, h)

	rec := doReq(t, h, http.MethodPost, "/internal/sessions/"+created.SessionID+"/activity")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ok struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ok); err != nil || !ok.OK {
		t.Fatalf("expected {ok:true}, got %s", rec.Body.String())
	}

	rec = doReq(t, h, http.MethodPost, "/internal/sessions/unknown/activity")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := setupRouter(t)
	rec := doReq(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	h := setupRouter(t)
	rec := doReq(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
