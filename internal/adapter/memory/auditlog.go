// Package memory provides in-memory adapter implementations for
// single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/kunho817/shattered-moon-mcp/internal/port/auditlog"
)

// defaultMaxEntries bounds the audit log so a long-lived process cannot
// grow without limit; oldest entries are discarded first.
const defaultMaxEntries = 10000

// AuditLog is an append-only in-memory strategy audit trail.
type AuditLog struct {
	mu      sync.RWMutex
	entries []auditlog.Entry
	max     int
}

var _ auditlog.Log = (*AuditLog)(nil)

// NewAuditLog creates an audit log holding at most max entries; max <= 0
// uses the default bound.
func NewAuditLog(max int) *AuditLog {
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &AuditLog{max: max}
}

// Append records one entry. Existing entries are never rewritten.
func (l *AuditLog) Append(_ context.Context, e auditlog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	return nil
}

// Recent returns up to limit entries for the graph, newest first.
func (l *AuditLog) Recent(_ context.Context, graphID string, limit int) ([]auditlog.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []auditlog.Entry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].GraphID == graphID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

// Len reports the number of stored entries.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
