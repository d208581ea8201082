package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kunho817/shattered-moon-mcp/internal/port/messagequeue"
)

// publishJSON marshals payload and sends it on the queue. Publish
// failures are logged, never propagated: messaging is advisory, not
// transactional.
func publishJSON(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Error("queue publish failed", "subject", subject, "error", err)
	}
}
