package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerIdempotencyKey = "Idempotency-Key"

	// Responses above this size are served but not stored; replaying a
	// retried graph or plan creation fits comfortably below it.
	maxStoredResponse = 1 << 20
)

// storedResponse is the replayable form of a handler response kept in
// the key-value bucket.
type storedResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency deduplicates mutating requests carrying an
// Idempotency-Key header. A retried request with a known key gets the
// stored response replayed instead of re-running the handler, so a
// client retry cannot create the same graph or plan twice. The bucket's
// TTL bounds how long keys are honored.
func Idempotency(kv jetstream.KeyValue) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if key == "" || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if entry, err := kv.Get(r.Context(), key); err == nil {
				if replay(w, entry.Value()) {
					return
				}
				slog.Warn("idempotency entry unreadable, re-running handler", "key", key)
			}

			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)
			store(r.Context(), kv, key, cw)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// replay writes a stored response back to the client; false means the
// stored bytes could not be decoded.
func replay(w http.ResponseWriter, raw []byte) bool {
	var sr storedResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return false
	}
	for name, vals := range sr.Headers {
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(sr.StatusCode)
	_, _ = w.Write(sr.Body)
	return true
}

// store persists the captured response under key, best-effort.
func store(ctx context.Context, kv jetstream.KeyValue, key string, cw *captureWriter) {
	if cw.body.Len() > maxStoredResponse {
		return
	}
	data, err := json.Marshal(storedResponse{
		StatusCode: cw.status,
		Headers:    cw.Header().Clone(),
		Body:       cw.body.Bytes(),
	})
	if err != nil {
		return
	}
	if _, err := kv.Put(ctx, key, data); err != nil {
		slog.Warn("idempotency store failed", "key", key, "error", err)
	}
}

// captureWriter tees the response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
