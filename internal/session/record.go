package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/deskwire/deskd/internal/alloc"
	"github.com/deskwire/deskd/internal/pipeline"
)

// Record is one live desktop session: its numeric allocations, its
// exclusively-owned workspace directory, and the handles of the five
// pipeline processes backing it. The registry is the sole writer.
type Record struct {
	SessionID    string          `json:"sessionId"`
	Resources    alloc.Resources `json:"resources"`
	WorkspaceDir string          `json:"workspaceDir"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastActivity time.Time       `json:"lastActivity"`

	handles *pipeline.Handles
	// set under the registry lock when teardown is claimed; a claimed
	// record is invisible to Get/Snapshot and cannot be claimed again.
	deleting bool
}

// newSessionID returns a 32-char hex token from 16 random bytes. The
// token is a bearer capability: possession is access, there is no
// user identity behind it.
func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
