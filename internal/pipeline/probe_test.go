package pipeline

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAwaitReadyTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	spec := StageSpec{Probe: ProbeTCP, ProbePort: port, ProbeLimit: time.Second}
	if err := awaitReady(context.Background(), spec); err != nil {
		t.Fatalf("probe should see the listener: %v", err)
	}
}

func TestAwaitReadyTCPTimeout(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	spec := StageSpec{Probe: ProbeTCP, ProbePort: port, ProbeLimit: 200 * time.Millisecond}
	if err := awaitReady(context.Background(), spec); err == nil {
		t.Fatal("expected timeout error for closed port")
	}
}

func TestAwaitReadyUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "X0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	spec := StageSpec{Probe: ProbeUnixSocket, ProbePath: path, ProbeLimit: time.Second}
	if err := awaitReady(context.Background(), spec); err != nil {
		t.Fatalf("probe should see the socket path: %v", err)
	}
}

func TestAwaitReadySettle(t *testing.T) {
	spec := StageSpec{Probe: ProbeNone, Settle: 10 * time.Millisecond}
	start := time.Now()
	if err := awaitReady(context.Background(), spec); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("settle returned too early")
	}
}

func TestAwaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	spec := StageSpec{Probe: ProbeNone, Settle: time.Minute}
	if err := awaitReady(ctx, spec); err == nil {
		t.Fatal("expected context error")
	}
}
