// Package oracle provides an HTTP client for the external decomposition
// and advisory oracle. It implements both the decomposer and the
// resolver's advisor port; callers fall back to local heuristics when the
// oracle is unreachable.
package oracle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kunho817/shattered-moon-mcp/internal/config"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/port/cache"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
	"github.com/kunho817/shattered-moon-mcp/internal/resilience"
)

const retryBase = 500 * time.Millisecond

var (
	_ decomposer.Decomposer = (*Client)(nil)
	_ conflict.Advisor      = (*Client)(nil)
)

// Client talks to the oracle's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      cache.Cache
	cacheTTL   time.Duration
	maxRetries uint64
}

// NewClient creates an oracle client from configuration.
func NewClient(cfg config.Oracle) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cacheTTL:   cfg.CacheTTL,
		maxRetries: cfg.MaxRetries,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetCache attaches a cache for decomposition responses. Identical
// objective/context pairs are served from cache within the TTL.
func (c *Client) SetCache(cc cache.Cache) {
	c.cache = cc
}

type decomposeRequest struct {
	Objective string `json:"objective"`
	Context   string `json:"context,omitempty"`
}

// Decompose asks the oracle to break an objective into graph nodes and
// edges. Transient failures are retried with exponential backoff; all
// terminal failures wrap ErrOracleUnavailable so callers can fall back.
func (c *Client) Decompose(ctx context.Context, taskText, contextText string) (*decomposer.Result, error) {
	key := decomposeKey(taskText, contextText)
	if cached := c.cachedResult(ctx, key); cached != nil {
		return cached, nil
	}

	body, err := json.Marshal(decomposeRequest{Objective: taskText, Context: contextText})
	if err != nil {
		return nil, fmt.Errorf("marshal decompose request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/decompose", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", decomposer.ErrOracleUnavailable, err)
	}

	var result decomposer.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal decomposition: %w", decomposer.ErrOracleUnavailable, err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	c.storeResult(ctx, key, data)
	return &result, nil
}

// Advise asks the oracle to refine a resolution strategy for a conflict.
func (c *Client) Advise(ctx context.Context, cf conflict.Conflict) (*conflict.Advice, error) {
	body, err := json.Marshal(cf)
	if err != nil {
		return nil, fmt.Errorf("marshal conflict: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/advise", body)
	if err != nil {
		return nil, fmt.Errorf("advise: %w", err)
	}

	var advice conflict.Advice
	if err := json.Unmarshal(data, &advice); err != nil {
		return nil, fmt.Errorf("unmarshal advice: %w", err)
	}
	return &advice, nil
}

// Health checks if the oracle is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

func (c *Client) cachedResult(ctx context.Context, key string) *decomposer.Result {
	if c.cache == nil {
		return nil
	}
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var result decomposer.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	if result.Validate() != nil {
		return nil
	}
	return &result
}

func (c *Client) storeResult(ctx context.Context, key string, data []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		slog.Debug("decomposition cache store failed", "error", err)
	}
}

func decomposeKey(taskText, contextText string) string {
	sum := sha256.Sum256([]byte(taskText + "\x00" + contextText))
	return "oracle:decompose:" + hex.EncodeToString(sum[:])
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(retryBase))
		return retry.Do(ctx, backoff, func(ctx context.Context) error {
			var bodyReader io.Reader
			if body != nil {
				bodyReader = bytes.NewReader(body)
			}

			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return retry.RetryableError(fmt.Errorf("http request: %w", err))
			}
			defer func() { _ = resp.Body.Close() }()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return retry.RetryableError(fmt.Errorf("read response: %w", err))
			}

			// Server-side failures may clear; client errors never will.
			if resp.StatusCode >= 500 {
				return retry.RetryableError(fmt.Errorf("oracle API error %d: %s", resp.StatusCode, string(data)))
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("oracle API error %d: %s", resp.StatusCode, string(data))
			}

			result = data
			return nil
		})
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
