// Package history provides an optional append-only audit trail of
// session lifecycle events. It never stores session state: the registry
// stays in-memory only and nothing is restored from a sink on restart.
package history

import (
	"context"
	"time"
)

// Event kinds recorded by the session manager.
const (
	EventCreated       = "created"
	EventTouched       = "touched"
	EventDeleted       = "deleted"
	EventReaped        = "reaped"
	EventTeardownError = "teardown_error"
)

// Event is one session lifecycle occurrence.
type Event struct {
	OccurredAt time.Time
	SessionID  string
	Kind       string
	Display    int
	Detail     string // free-form, e.g. the absorbed teardown error
}

// Sink receives lifecycle events. Implementations must be safe for
// concurrent Send calls.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Nop discards all events; used when no DSN is configured.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
