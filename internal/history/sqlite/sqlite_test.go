package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/deskwire/deskd/internal/history"
)

func TestSendAndQuery(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{OccurredAt: time.Now(), SessionID: "a1", Kind: history.EventCreated, Display: 100},
		{OccurredAt: time.Now(), SessionID: "a1", Kind: history.EventDeleted, Display: 100},
		{OccurredAt: time.Now(), SessionID: "b2", Kind: history.EventReaped, Display: 101, Detail: "idle"},
	}
	for _, e := range events {
		if err := s.Send(ctx, e); err != nil {
			t.Fatalf("Send(%s): %v", e.Kind, err)
		}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_history`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(events) {
		t.Fatalf("expected %d rows, got %d", len(events), n)
	}

	var kind, detail string
	err = s.db.QueryRowContext(ctx,
		`SELECT kind, detail FROM session_history WHERE session_id = ?`, "b2").
		Scan(&kind, &detail)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if kind != history.EventReaped || detail != "idle" {
		t.Fatalf("unexpected row: kind=%q detail=%q", kind, detail)
	}
}

func TestDSNPrefix(t *testing.T) {
	s, err := New("sqlite://" + filepath.Join(t.TempDir(), "p.db"))
	if err != nil {
		t.Fatalf("New with prefix: %v", err)
	}
	_ = s.Close()
}

func TestEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
