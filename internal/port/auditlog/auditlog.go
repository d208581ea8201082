// Package auditlog defines the append-only log port for resolution
// strategy history.
package auditlog

import (
	"context"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
)

// Entry is one immutable record of a generated resolution strategy.
type Entry struct {
	ID         string            `json:"id"`
	GraphID    string            `json:"graph_id"`
	ConflictID string            `json:"conflict_id"`
	Strategy   conflict.Strategy `json:"strategy"`
	Applied    bool              `json:"applied"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Log is the port interface for the strategy audit trail. Appends are
// never rewritten; Recent reads newest-first.
type Log interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, graphID string, limit int) ([]Entry, error)
}
