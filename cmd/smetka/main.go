// Command smetka is the main entry point for the voice estimate server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velesk/smetka/internal/config"
	"github.com/velesk/smetka/internal/dictation"
	"github.com/velesk/smetka/internal/estimate/eststore"
	"github.com/velesk/smetka/internal/health"
	"github.com/velesk/smetka/internal/observe"
	"github.com/velesk/smetka/internal/pricelist"
	"github.com/velesk/smetka/internal/resilience"
	"github.com/velesk/smetka/internal/server"
	"github.com/velesk/smetka/pkg/provider/embeddings"
	"github.com/velesk/smetka/pkg/provider/parse"
	"github.com/velesk/smetka/pkg/provider/parse/fallback"
	"github.com/velesk/smetka/pkg/provider/transcribe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "smetka: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "smetka: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("smetka starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewDefaultRegistry()
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		estimates eststore.Store
		catalog   pricelist.Store
		suggest   *pricelist.SemanticIndex
		checkers  []health.Checker
	)
	if cfg.Storage.PostgresDSN != "" {
		pool, err := openPool(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pgEstimates := eststore.NewPostgresStore(pool)
		if err := pgEstimates.Migrate(ctx); err != nil {
			slog.Error("estimate schema migration failed", "err", err)
			return 1
		}
		pgCatalog := pricelist.NewPostgresStore(pool)
		if err := pgCatalog.Migrate(ctx); err != nil {
			slog.Error("price catalog schema migration failed", "err", err)
			return 1
		}
		estimates, catalog = pgEstimates, pgCatalog
		checkers = append(checkers, health.Database("postgres", pool))

		if providers.embedder != nil {
			suggest = pricelist.NewSemanticIndex(pool, providers.embedder)
			if err := suggest.Migrate(ctx); err != nil {
				slog.Error("semantic index migration failed", "err", err)
				return 1
			}
		}
		slog.Info("postgres storage ready")
	} else {
		estimates = eststore.NewMemStore()
		catalog = pricelist.NewMemStore()
		slog.Warn("running with in-memory storage; estimates are lost on restart")
	}

	// ── Dictation controller ──────────────────────────────────────────────────
	ctrl, err := dictation.New(dictation.Config{
		Store:          estimates,
		Catalog:        catalog,
		Transcriber:    providers.transcriber,
		Parser:         providers.parser,
		FallbackParser: providers.fallbackParser,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("failed to build dictation controller", "err", err)
		return 1
	}

	if !cfg.Autosave.Disabled {
		interval := time.Duration(cfg.Autosave.IntervalSeconds) * time.Second
		go ctrl.RunAutoSave(ctx, interval)
	}
	go drainNotifications(ctx, ctrl)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvCfg := server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		Controller:     ctrl,
		Estimates:      estimates,
		Catalog:        catalog,
		Suggest:        suggest,
		Language:       cfg.Capture.Language,
		Health:         health.New(checkers...),
		MetricsHandler: promhttp.Handler(),
		Logger:         logger,
	}
	if cfg.Server.TLS != nil {
		srvCfg.TLSCertFile = cfg.Server.TLS.CertFile
		srvCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}
	if srvCfg.ListenAddr == "" {
		srvCfg.ListenAddr = ":8080"
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// providerSet holds the instantiated provider collaborators. A nil field
// means the corresponding stage is not configured.
type providerSet struct {
	transcriber    transcribe.Provider
	parser         parse.Provider
	fallbackParser parse.Provider
	embedder       embeddings.Provider
}

// buildProviders instantiates all providers named in cfg using the registry.
// The local fallback parser stands in as the primary when no AI parser is
// configured, so parsing always has at least one path.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	// API-backed providers get a circuit breaker so an outage fails fast
	// instead of stacking request timeouts.
	breaker := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 3},
	}

	if name := cfg.Providers.Transcribe.Name; name != "" {
		p, err := reg.CreateTranscribe(cfg.Providers.Transcribe)
		if err != nil {
			return nil, fmt.Errorf("create transcribe provider %q: %w", name, err)
		}
		ps.transcriber = resilience.NewTranscribeFallback(p, name, breaker)
		slog.Info("provider created", "kind", "transcribe", "name", name)
	}

	if name := cfg.Providers.Parse.Name; name != "" {
		p, err := reg.CreateParse(cfg.Providers.Parse)
		if err != nil {
			return nil, fmt.Errorf("create parse provider %q: %w", name, err)
		}
		ps.parser = resilience.NewParseFallback(p, name, breaker)
		slog.Info("provider created", "kind", "parse", "name", name)
	}

	if !cfg.Providers.Fallback.Disabled {
		var opts []fallback.Option
		if d := cfg.Providers.Fallback.MaxDistance; d > 0 {
			opts = append(opts, fallback.WithMaxDistance(d))
		}
		ps.fallbackParser = fallback.New(opts...)
	}
	if ps.parser == nil {
		ps.parser = ps.fallbackParser
		ps.fallbackParser = nil
		slog.Warn("no AI parser configured; using the local keyword parser as primary")
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.embedder = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	return ps, nil
}

// openPool connects to PostgreSQL and registers pgvector types on every new
// connection so the semantic index can bind vector parameters.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Providers.Embeddings.Name != "" {
		poolCfg.AfterConnect = pgxvec.RegisterTypes
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// drainNotifications logs dictation background failures (autosave errors)
// until ctx is cancelled.
func drainNotifications(ctx context.Context, ctrl *dictation.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-ctrl.Notifications():
			slog.Warn("dictation notification", "message", n.Message, "err", n.Err)
		}
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
