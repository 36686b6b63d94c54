// Package deskd exposes the session daemon for embedding: a stable
// facade over the internal session manager, pipeline supervisor and
// idle reaper, for callers that want the orchestrator inside their own
// binary instead of running the deskd CLI.
package deskd

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deskwire/deskd/internal/alloc"
	cfg "github.com/deskwire/deskd/internal/config"
	"github.com/deskwire/deskd/internal/history"
	hfactory "github.com/deskwire/deskd/internal/history/factory"
	"github.com/deskwire/deskd/internal/metrics"
	"github.com/deskwire/deskd/internal/pipeline"
	iapi "github.com/deskwire/deskd/internal/server"
	"github.com/deskwire/deskd/internal/session"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Record = session.Record

type Resources = alloc.Resources

type HistorySink = history.Sink

// IsNotFound reports whether the error indicates a missing session.
func IsNotFound(err error) bool { return session.IsNotFound(err) }

// Manager is a thin facade over internal/session.Manager.
type Manager struct {
	inner  *session.Manager
	reaper *session.Reaper
}

// New wires an allocator, supervisor and registry from cfg. The idle
// reaper is constructed but not started; call StartReaper.
func New(c *Config) (*Manager, error) {
	sink, err := hfactory.NewSinkFromDSN(c.HistoryDSN)
	if err != nil {
		return nil, err
	}
	allocator := alloc.New(c.DisplayBase, c.VNCBase, c.WSBase)
	supervisor := pipeline.NewSupervisor(c.Commands, c.StageLog)
	mgr := session.NewManager(allocator, supervisor, c.WorkspaceRoot, sink)
	return &Manager{
		inner:  mgr,
		reaper: session.NewReaper(mgr, c.ReapInterval, c.IdleTimeout),
	}, nil
}

func (m *Manager) Create(ctx context.Context) (Record, error) { return m.inner.Create(ctx) }
func (m *Manager) Get(id string) (Record, error)              { return m.inner.Get(id) }
func (m *Manager) Delete(id string) error                     { return m.inner.Delete(id) }
func (m *Manager) Touch(id string) error                      { return m.inner.Touch(id) }
func (m *Manager) Sessions() []Record                         { return m.inner.Snapshot() }
func (m *Manager) Shutdown()                                  { m.inner.Shutdown() }

// StartReaper runs the idle reaper until ctx is cancelled.
func (m *Manager) StartReaper(ctx context.Context) { go m.reaper.Run(ctx) }

// HTTPHandler returns the internal control API handler for mounting in
// an existing server. It must only be exposed on a trusted network.
func (m *Manager) HTTPHandler() http.Handler {
	return iapi.NewRouter(m.inner).Handler()
}

// Serve starts the internal control API on addr.
func (m *Manager) Serve(addr string) *http.Server {
	return iapi.NewServer(addr, m.inner)
}

// RegisterMetrics registers the deskd collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// LoadConfig reads configuration from the optional TOML file at path.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }
