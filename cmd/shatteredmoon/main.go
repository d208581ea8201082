// Command shatteredmoon runs the coordination core: dependency graph
// management, conflict resolution, phase planning, and plan execution,
// exposed over HTTP and MCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kunho817/shattered-moon-mcp/internal/adapter/heuristic"
	smhttp "github.com/kunho817/shattered-moon-mcp/internal/adapter/http"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/mcp"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/memory"
	smnats "github.com/kunho817/shattered-moon-mcp/internal/adapter/nats"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/natskv"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/oracle"
	otelad "github.com/kunho817/shattered-moon-mcp/internal/adapter/otel"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ristretto"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/tiered"
	"github.com/kunho817/shattered-moon-mcp/internal/adapter/ws"
	"github.com/kunho817/shattered-moon-mcp/internal/config"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/conflict"
	"github.com/kunho817/shattered-moon-mcp/internal/domain/schedule"
	"github.com/kunho817/shattered-moon-mcp/internal/logger"
	"github.com/kunho817/shattered-moon-mcp/internal/middleware"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
	"github.com/kunho817/shattered-moon-mcp/internal/resilience"
	"github.com/kunho817/shattered-moon-mcp/internal/service"
)

const version = "0.1.0"

func main() {
	// Bootstrap logger until the configured one takes over.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(flags config.CLIFlags) error {
	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", yamlPath,
		"port", cfg.Server.Port,
		"mcp_port", cfg.Server.MCPPort,
		"log_level", cfg.Logging.Level,
		"oracle_url", cfg.Oracle.URL,
	)

	holder := config.NewHolder(cfg, yamlPath)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown := otelad.NoopShutdown()
	if cfg.Telemetry.Enabled {
		otelShutdown, err = otelad.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := otelad.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// NATS
	queue, err := smnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Tiered cache: in-process ristretto over a shared JetStream bucket.
	l1, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	oracleKV, err := queue.KeyValue(ctx, "oracle-cache", cfg.Oracle.CacheTTL)
	if err != nil {
		return fmt.Errorf("oracle cache bucket: %w", err)
	}
	oracleCache := tiered.New(l1, natskv.New(oracleKV), cfg.Cache.DefaultTTL)

	// --- Oracle ---
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	var (
		primary decomposer.Decomposer
		advisor conflict.Advisor
	)
	if cfg.Oracle.URL != "" {
		client := oracle.NewClient(cfg.Oracle)
		client.SetBreaker(breaker)
		client.SetCache(oracleCache)
		primary = client
		advisor = client
	} else {
		slog.Warn("no oracle configured, running on heuristic fallbacks")
		advisor = heuristic.NewAdvisor()
	}

	resolver := conflict.NewResolver(advisor, conflict.ResolverConfig{
		StaggerIncrement: cfg.Resolver.StaggerIncrement,
		TransferDuration: cfg.Resolver.TransferDuration,
	})

	// --- Services ---
	hub := ws.NewHub()
	audit := memory.NewAuditLog(0)

	allocCfg := schedule.AllocatorConfig{
		Capacity:        cfg.Allocator.Capacity,
		HighWater:       cfg.Allocator.HighWater,
		LowWater:        cfg.Allocator.LowWater,
		MaxMovesPerPass: cfg.Allocator.MaxMovesPerPass,
	}

	coordSvc := service.NewCoordinatorService(primary, heuristic.New(), resolver, queue, hub, audit)
	coordSvc.SetMetrics(metrics)
	plannerSvc := service.NewPlannerService(coordSvc, queue, schedule.SchedulerConfig{
		MaxSameTeamPerGroup: cfg.Scheduler.MaxSameTeamPerGroup,
		DefaultTeam:         cfg.Scheduler.DefaultTeam,
	}, allocCfg)
	execSvc := service.NewExecutionService(plannerSvc, smnats.NewExecutor(queue), queue, hub, metrics, service.ExecutionConfig{
		MaxParallel:      cfg.Execution.MaxParallel,
		BottleneckFactor: cfg.Execution.BottleneckFactor,
	})
	// No capability registry wired yet: the rebalancer degrades to
	// first-available team selection.
	optimizerSvc := service.NewOptimizerService(plannerSvc, nil, queue, hub, allocCfg)

	// --- MCP ---
	mcpSrv := mcp.NewServer(mcp.ServerConfig{
		Addr:    ":" + cfg.Server.MCPPort,
		Name:    "shattered-moon",
		Version: version,
		APIKey:  cfg.Server.MCPAPIKey,
	}, mcp.ServerDeps{
		Coordinator: coordSvc,
		Planner:     plannerSvc,
		Runner:      execSvc,
		Optimizer:   optimizerSvc,
	})
	if err := mcpSrv.Start(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	// --- HTTP ---
	handlers := &smhttp.Handlers{
		Coordinator: coordSvc,
		Planner:     plannerSvc,
		Runner:      execSvc,
		Optimizer:   optimizerSvc,
		Hub:         hub,
		Queue:       queue,
		Config:      holder,
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	stopCleanup := rateLimiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopCleanup()

	idemKV, err := queue.KeyValue(ctx, "idempotency", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(smhttp.SecurityHeaders)
	r.Use(smhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(smhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(rateLimiter.Handler)
	r.Use(middleware.Idempotency(idemKV))
	if cfg.Telemetry.Enabled {
		r.Use(otelad.HTTPMiddleware(cfg.Logging.Service))
	}

	smhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Config hot reload on SIGHUP. Infrastructure keeps its boot-time
	// wiring; the health endpoint reads through the holder.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "path", yamlPath, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", yamlPath, "log_level", holder.Get().Logging.Level)
		}
	}()

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr, "mcp_addr", ":"+cfg.Server.MCPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mcpSrv.Stop(shutdownCtx); err != nil {
		slog.Error("mcp shutdown failed", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
