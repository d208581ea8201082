package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/kunho817/shattered-moon-mcp/internal/middleware"
)

// memoryKV backs the idempotency bucket in memory. Only Get and Put
// matter to the middleware; the rest of jetstream.KeyValue is stubbed.
type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memoryKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &memoryEntry{key: key, value: v}, nil
}

func (m *memoryKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return 1, nil
}

func (m *memoryKV) Bucket() string { return "idempotency" }
func (m *memoryKV) Create(_ context.Context, _ string, _ []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	return 0, nil
}
func (m *memoryKV) Update(_ context.Context, _ string, _ []byte, _ uint64) (uint64, error) {
	return 0, nil
}
func (m *memoryKV) PutString(_ context.Context, _, _ string) (uint64, error)             { return 0, nil }
func (m *memoryKV) Delete(_ context.Context, _ string, _ ...jetstream.KVDeleteOpt) error { return nil }
func (m *memoryKV) Purge(_ context.Context, _ string, _ ...jetstream.KVDeleteOpt) error  { return nil }
func (m *memoryKV) GetRevision(_ context.Context, _ string, _ uint64) (jetstream.KeyValueEntry, error) {
	return nil, nil
}
func (m *memoryKV) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) { return nil, nil }
func (m *memoryKV) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	return nil, nil
}
func (m *memoryKV) ListKeysFiltered(_ context.Context, _ ...string) (jetstream.KeyLister, error) {
	return nil, nil
}
func (m *memoryKV) History(_ context.Context, _ string, _ ...jetstream.WatchOpt) ([]jetstream.KeyValueEntry, error) {
	return nil, nil
}
func (m *memoryKV) Watch(_ context.Context, _ string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *memoryKV) WatchAll(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *memoryKV) WatchFiltered(_ context.Context, _ []string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *memoryKV) Status(_ context.Context) (jetstream.KeyValueStatus, error)      { return nil, nil }
func (m *memoryKV) PurgeDeletes(_ context.Context, _ ...jetstream.KVPurgeOpt) error { return nil }

type memoryEntry struct {
	key   string
	value []byte
}

func (e *memoryEntry) Bucket() string                  { return "idempotency" }
func (e *memoryEntry) Key() string                     { return e.key }
func (e *memoryEntry) Value() []byte                   { return e.value }
func (e *memoryEntry) Revision() uint64                { return 1 }
func (e *memoryEntry) Created() time.Time              { return time.Time{} }
func (e *memoryEntry) Delta() uint64                   { return 0 }
func (e *memoryEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// graphCreator counts how many graphs the backend actually creates.
func graphCreator(created *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*created++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"graph_id":"g-%d"}`, *created)
	})
}

func createGraph(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/graphs", http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	created := 0
	h := middleware.Idempotency(newMemoryKV())(graphCreator(&created))

	if rec := createGraph(h, ""); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if created != 1 {
		t.Fatalf("expected 1 graph created, got %d", created)
	}
}

func TestIdempotency_FirstRequestStored(t *testing.T) {
	created := 0
	kv := newMemoryKV()
	h := middleware.Idempotency(kv)(graphCreator(&created))

	if rec := createGraph(h, "create-billing-graph"); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !kv.has("create-billing-graph") {
		t.Fatal("response not stored under the idempotency key")
	}
}

func TestIdempotency_RetryReplaysWithoutReExecuting(t *testing.T) {
	created := 0
	h := middleware.Idempotency(newMemoryKV())(graphCreator(&created))

	first := createGraph(h, "create-billing-graph")
	retry := createGraph(h, "create-billing-graph")

	if created != 1 {
		t.Fatalf("retry must not create a second graph, created %d", created)
	}
	if retry.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, want 201", retry.Code)
	}
	if retry.Body.String() != first.Body.String() {
		t.Fatalf("replay body %q differs from original %q", retry.Body.String(), first.Body.String())
	}
}

func TestIdempotency_ReadsBypassDeduplication(t *testing.T) {
	served := 0
	h := middleware.Idempotency(newMemoryKV())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/graphs/g-1", http.NoBody)
		req.Header.Set("Idempotency-Key", "read-key")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if served != 2 {
		t.Fatalf("GET must always reach the handler, served %d", served)
	}
}

func TestIdempotency_DistinctKeysDistinctRequests(t *testing.T) {
	created := 0
	h := middleware.Idempotency(newMemoryKV())(graphCreator(&created))

	createGraph(h, "graph-one")
	createGraph(h, "graph-two")
	if created != 2 {
		t.Fatalf("expected 2 graphs, got %d", created)
	}
}
