package pipeline

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

const probeInterval = 100 * time.Millisecond

// awaitReady blocks until the stage's probe succeeds, its probe budget
// runs out, or ctx is cancelled. A nil return means the stage was
// observed ready; an error means the pipeline should proceed anyway
// with the failure logged (readiness is advisory, not gating).
func awaitReady(ctx context.Context, s StageSpec) error {
	switch s.Probe {
	case ProbeTCP:
		return pollUntil(ctx, s.ProbeLimit, func() bool {
			return portListening(s.ProbePort)
		})
	case ProbeUnixSocket:
		return pollUntil(ctx, s.ProbeLimit, func() bool {
			_, err := os.Stat(s.ProbePath)
			return err == nil
		})
	default:
		if s.Settle > 0 {
			select {
			case <-time.After(s.Settle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

func pollUntil(ctx context.Context, limit time.Duration, ok func() bool) error {
	if limit <= 0 {
		limit = 5 * time.Second
	}
	deadline := time.Now().Add(limit)
	for {
		if ok() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after %s", limit)
		}
		select {
		case <-time.After(probeInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func portListening(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), probeInterval)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
