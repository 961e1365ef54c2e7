package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tokkyo-ai/tokkyo/api"
	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/config"
	"github.com/tokkyo-ai/tokkyo/internal/ratelimit"
	"github.com/tokkyo-ai/tokkyo/internal/server"
	"github.com/tokkyo-ai/tokkyo/internal/service/briefing"
	"github.com/tokkyo-ai/tokkyo/internal/service/drafting"
	"github.com/tokkyo-ai/tokkyo/internal/service/export"
	"github.com/tokkyo-ai/tokkyo/internal/service/qa"
	"github.com/tokkyo-ai/tokkyo/internal/service/risk"
	"github.com/tokkyo-ai/tokkyo/internal/service/specs"
	"github.com/tokkyo-ai/tokkyo/internal/storage"
	"github.com/tokkyo-ai/tokkyo/internal/telemetry"
	"github.com/tokkyo-ai/tokkyo/migrations"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("tokkyod starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// Dev convenience; production deploys run `tokkyod migrate` explicitly.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		slog.Warn("migrations failed", "error", err)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	pipeline := newPipeline(cfg, logger)

	var renderer export.Renderer
	if cfg.RendererBinary != "" {
		renderer = export.ExecRenderer{Binary: cfg.RendererBinary}
		logger.Info("export renderer: external", "binary", cfg.RendererBinary)
	}

	handlers := server.NewHandlers(server.HandlersDeps{
		DB:                  db,
		JWTMgr:              jwtMgr,
		BriefingSvc:         briefing.New(db, pipeline, logger),
		DraftingSvc:         drafting.New(db, pipeline, logger),
		RiskSvc:             risk.New(db, pipeline, logger),
		SpecsSvc:            specs.New(db, pipeline, logger),
		QASvc:               qa.New(db, pipeline, logger),
		ExportSvc:           export.New(db, renderer, logger),
		Logger:              logger,
		Version:             version,
		OpenAPISpec:         api.OpenAPISpec,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = mem.Close() }()
		limiter = mem
		logger.Info("rate limiting: enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	srv := server.New(server.ServerConfig{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Limiter:      limiter,
	}, handlers, jwtMgr, logger)

	if err := handlers.SeedAdmin(ctx, cfg.AdminAPIKey); err != nil {
		slog.Warn("admin seed failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("tokkyod shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("tokkyod stopped")
	return nil
}

// newPipeline selects the agent pipeline from configuration. The stub
// provider exists for local development and CI runs without API access.
func newPipeline(cfg config.Config, logger *slog.Logger) agent.Pipeline {
	var retriever agent.ContextRetriever = agent.NopRetriever{}
	if cfg.RetrieverURL != "" {
		retriever = agent.NewHTTPRetriever(cfg.RetrieverURL)
		logger.Info("prior-art retriever: enabled", "url", cfg.RetrieverURL)
	}

	var p agent.Pipeline
	switch cfg.AgentProvider {
	case "stub":
		logger.Info("agent provider: stub (deterministic drafts)")
		p = &agent.StubPipeline{}
	default:
		logger.Info("agent provider: openai", "model", cfg.OpenAIModel)
		p = agent.NewOpenAIPipeline(cfg.OpenAIAPIKey, cfg.OpenAIModel, retriever, logger)
	}
	return agent.WithTimeout(p, cfg.AgentTimeout)
}
