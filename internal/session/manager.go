// Package session owns the lifecycle of desktop sessions: allocation of
// display and port numbers, launching the process pipeline, the shared
// in-memory registry, activity tracking, and teardown (explicit or via
// the idle reaper). All state lives in this process; a restart starts
// from an empty registry by design.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/deskwire/deskd/internal/alloc"
	"github.com/deskwire/deskd/internal/history"
	"github.com/deskwire/deskd/internal/metrics"
	"github.com/deskwire/deskd/internal/pipeline"
)

// ErrNotFound is returned when a session ID does not exist.
var ErrNotFound = errors.New("session not found")

// IsNotFound reports whether the error indicates a missing session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// nowFunc is swapped out by tests that exercise idle expiry.
var nowFunc = time.Now

// Teardown reasons, recorded in metrics and history.
const (
	ReasonDeleted  = "deleted"
	ReasonReaped   = "reaped"
	ReasonShutdown = "shutdown"
)

// Manager coordinates the allocator, the pipeline supervisor and the
// registry. It is the only writer path besides the reaper, which also
// goes through it.
type Manager struct {
	allocator  *alloc.Allocator
	supervisor *pipeline.Supervisor
	registry   *registry
	sink       history.Sink

	workspaceRoot string
}

func NewManager(allocator *alloc.Allocator, supervisor *pipeline.Supervisor, workspaceRoot string, sink history.Sink) *Manager {
	if sink == nil {
		sink = history.Nop{}
	}
	return &Manager{
		allocator:     allocator,
		supervisor:    supervisor,
		registry:      newRegistry(),
		sink:          sink,
		workspaceRoot: workspaceRoot,
	}
}

// Create allocates resources, creates the workspace, launches the
// pipeline and registers the session, in that order. The record only
// becomes visible once fully constructed, so a concurrent Get for the
// new id either misses entirely or sees the finished session.
func (m *Manager) Create(ctx context.Context) (Record, error) {
	start := nowFunc()

	id, err := newSessionID()
	if err != nil {
		return Record{}, err
	}
	res := m.allocator.Allocate()
	dir := filepath.Join(m.workspaceRoot, "sessions", id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Record{}, fmt.Errorf("create workspace: %w", err)
	}

	handles, err := m.supervisor.Launch(ctx, id, res, dir)
	if err != nil {
		// Launch only fails on context cancellation; clean up whatever
		// already started so nothing outlives the aborted creation.
		m.supervisor.Terminate(id, handles)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("workspace cleanup after failed create", "session", id, "error", rmErr)
		}
		return Record{}, fmt.Errorf("launch pipeline: %w", err)
	}

	now := nowFunc()
	rec := &Record{
		SessionID:    id,
		Resources:    res,
		WorkspaceDir: dir,
		CreatedAt:    now,
		LastActivity: now,
		handles:      handles,
	}
	m.registry.put(rec)

	metrics.SessionCreated(now.Sub(start))
	m.record(id, history.EventCreated, res.Display, "")
	slog.Info("session created",
		"session", id, "display", res.Display, "vnc_port", res.VNCPort, "ws_port", res.WSPort)
	return *rec, nil
}

// Get returns a copy of the session record, or ErrNotFound.
func (m *Manager) Get(id string) (Record, error) {
	rec, ok := m.registry.get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Touch advances the session's last-activity timestamp.
func (m *Manager) Touch(id string) error {
	if !m.registry.touch(id) {
		return ErrNotFound
	}
	m.record(id, history.EventTouched, 0, "")
	return nil
}

// Delete tears the session down: SIGTERM every pipeline process, remove
// the workspace, then drop the registry entry, in that order. A second
// Delete racing this one (or the reaper) gets ErrNotFound.
func (m *Manager) Delete(id string) error {
	return m.teardown(id, ReasonDeleted)
}

func (m *Manager) teardown(id, reason string) error {
	rec, ok := m.registry.claim(id)
	if !ok {
		return ErrNotFound
	}

	m.supervisor.Terminate(id, rec.handles)
	if err := os.RemoveAll(rec.WorkspaceDir); err != nil {
		// Absorbed: teardown must stay idempotent and non-blocking.
		slog.Warn("workspace removal failed", "session", id, "error", err)
		metrics.TeardownError()
		m.record(id, history.EventTeardownError, rec.Resources.Display, err.Error())
	}
	m.registry.remove(id)

	metrics.SessionDeleted(reason)
	kind := history.EventDeleted
	if reason == ReasonReaped {
		kind = history.EventReaped
	}
	m.record(id, kind, rec.Resources.Display, "")
	slog.Info("session removed", "session", id, "reason", reason)
	return nil
}

// Snapshot returns copies of all live records.
func (m *Manager) Snapshot() []Record {
	return m.registry.snapshot()
}

// Len reports the number of registered sessions.
func (m *Manager) Len() int {
	return m.registry.len()
}

// Shutdown tears down every live session. Used on daemon exit so a
// dying container does not orphan Xvfb and friends.
func (m *Manager) Shutdown() {
	for _, rec := range m.registry.snapshot() {
		if err := m.teardown(rec.SessionID, ReasonShutdown); err != nil && !IsNotFound(err) {
			slog.Warn("shutdown teardown", "session", rec.SessionID, "error", err)
		}
	}
	_ = m.sink.Close()
}

// record ships a lifecycle event to the history sink without blocking
// the caller; audit failures are a debug-level curiosity, never an
// operational error.
func (m *Manager) record(id, kind string, display int, detail string) {
	if _, ok := m.sink.(history.Nop); ok {
		return
	}
	e := history.Event{OccurredAt: nowFunc(), SessionID: id, Kind: kind, Display: display, Detail: detail}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.sink.Send(ctx, e); err != nil {
			slog.Debug("history send failed", "session", id, "kind", kind, "error", err)
		}
	}()
}
