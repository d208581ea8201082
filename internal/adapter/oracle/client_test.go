package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kunho817/shattered-moon-mcp/internal/adapter/oracle"
	"github.com/kunho817/shattered-moon-mcp/internal/config"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
)

func testConfig(url string) config.Oracle {
	return config.Oracle{
		URL:        url,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		CacheTTL:   time.Minute,
	}
}

func decomposition() decomposer.Result {
	return decomposer.Result{
		Nodes: []decomposer.NodeSpec{
			{Node: depgraph.Node{ID: "t1", Kind: depgraph.KindTask, Name: "design"}},
			{Node: depgraph.Node{ID: "t2", Kind: depgraph.KindTask, Name: "build"}},
		},
		Edges: []depgraph.Edge{{From: "t1", To: "t2", Kind: depgraph.EdgeHard}},
	}
}

func TestDecompose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/decompose" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["objective"] != "ship the feature" {
			t.Fatalf("unexpected objective: %q", req["objective"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(decomposition())
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	result, err := client.Decompose(context.Background(), "ship the feature", "")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(result.Nodes))
	}
	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(result.Edges))
	}
}

func TestDecomposeServerErrorWrapsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	_, err := client.Decompose(context.Background(), "anything", "")
	if !errors.Is(err, decomposer.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestDecomposeEmptyResultRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":[]}`))
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	_, err := client.Decompose(context.Background(), "anything", "")
	if !errors.Is(err, decomposer.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable for empty result, got %v", err)
	}
}

func TestDecomposeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(decomposition())
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	client := oracle.NewClient(cfg)

	result, err := client.Decompose(context.Background(), "retry me", "")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(result.Nodes))
	}
}

// memCache is a minimal in-memory cache for exercising the decomposition
// cache path.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestDecomposeCaching(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(decomposition())
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	client.SetCache(&memCache{})

	for i := 0; i < 3; i++ {
		if _, err := client.Decompose(context.Background(), "same objective", "same context"); err != nil {
			t.Fatalf("Decompose %d failed: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}

	// A different objective misses the cache.
	if _, err := client.Decompose(context.Background(), "other objective", ""); err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestAdvise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/advise" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		advice := conflict.Advice{
			Steps: []conflict.Step{
				{Action: "stagger", Targets: []string{"t1", "t2"}, Outcome: "serialized access"},
			},
			RiskLevel:          conflict.RiskLow,
			SuccessProbability: 0.92,
		}
		_ = json.NewEncoder(w).Encode(advice)
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	advice, err := client.Advise(context.Background(), conflict.Conflict{
		ID:   "c1",
		Kind: conflict.KindResourceContention,
	})
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}
	if len(advice.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(advice.Steps))
	}
	if advice.SuccessProbability != 0.92 {
		t.Fatalf("unexpected probability: %v", advice.SuccessProbability)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	client := oracle.NewClient(testConfig(srv.URL))
	healthy, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !healthy {
		t.Fatal("expected healthy")
	}
}
