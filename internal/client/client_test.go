package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func stubDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	mux.HandleFunc("POST /internal/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Session{
			SessionID: "abc123", Display: 100, VNCPort: 5900, WSPort: 6900,
			WorkspaceDir: "/workspace/sessions/abc123",
		})
	})
	mux.HandleFunc("GET /internal/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc123" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Session not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(Session{SessionID: "abc123", WSPort: 6900})
	})
	mux.HandleFunc("DELETE /internal/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc123" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Session not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Session deleted"})
	})
	mux.HandleFunc("POST /internal/sessions/{id}/activity", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc123" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Session not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := stubDaemon(t)
	c := New(srv.URL, time.Second)

	if !c.IsReachable() {
		t.Fatal("daemon should be reachable")
	}

	s, err := c.CreateSession()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.SessionID != "abc123" || s.WSPort != 6900 {
		t.Fatalf("unexpected session: %+v", s)
	}

	if _, err := c.GetSession("abc123"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := c.TouchActivity("abc123"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := c.DeleteSession("abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestClientNotFound(t *testing.T) {
	srv := stubDaemon(t)
	c := New(srv.URL, time.Second)

	if _, err := c.GetSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: want ErrNotFound, got %v", err)
	}
	if err := c.DeleteSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: want ErrNotFound, got %v", err)
	}
	if err := c.TouchActivity("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("touch: want ErrNotFound, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	if c.IsReachable() {
		t.Fatal("nothing should be listening on port 1")
	}
	if _, err := c.CreateSession(); err == nil {
		t.Fatal("expected connection error")
	}
}
