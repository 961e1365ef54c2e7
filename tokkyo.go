// Package tokkyo is the public API for embedding the tokkyo patent
// drafting server.
//
// Enterprise consumers import this package to construct and extend the
// server without forking it:
//
//	app, err := tokkyo.New(
//	    tokkyo.WithVersion(version),
//	    tokkyo.WithLogger(logger),
//	    tokkyo.WithRenderer(myDocxRenderer{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: tokkyo (root) imports
// internal/*, but internal/* never imports tokkyo (root). The extension
// interfaces (Renderer, PriorArtRetriever) are standalone types with no
// internal imports; the adapters bridging them live here because this is
// the only file that sees both sides of the boundary.
package tokkyo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/tokkyo-ai/tokkyo/api"
	"github.com/tokkyo-ai/tokkyo/internal/agent"
	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/config"
	"github.com/tokkyo-ai/tokkyo/internal/model"
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

// App is the tokkyo server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the server. It connects to the database, runs migrations,
// wires all subsystems, and returns a ready-to-run App. It does NOT start
// any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("tokkyo starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Agent pipeline. An external retriever override takes priority.
	var retriever agent.ContextRetriever = agent.NopRetriever{}
	if o.retriever != nil {
		retriever = o.retriever
	} else if cfg.RetrieverURL != "" {
		retriever = agent.NewHTTPRetriever(cfg.RetrieverURL)
	}
	var pipeline agent.Pipeline
	if cfg.AgentProvider == "stub" {
		pipeline = &agent.StubPipeline{}
	} else {
		pipeline = agent.NewOpenAIPipeline(cfg.OpenAIAPIKey, cfg.OpenAIModel, retriever, logger)
	}
	pipeline = agent.WithTimeout(pipeline, cfg.AgentTimeout)

	// Export renderer: external override, then configured binary, then
	// the in-process plain renderer.
	var renderer export.Renderer
	if o.renderer != nil {
		renderer = &rendererAdapter{r: o.renderer}
	} else if cfg.RendererBinary != "" {
		renderer = export.ExecRenderer{Binary: cfg.RendererBinary}
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

	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, (func(http.Handler) http.Handler)(mw))
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	srv := server.New(server.ServerConfig{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Limiter:      limiter,
		Middlewares:  middlewares,
	}, handlers, jwtMgr, logger)

	if err := handlers.SeedAdmin(context.Background(), cfg.AdminAPIKey); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("admin seed: %w", err)
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically, so
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the database pool
// and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("tokkyo shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("tokkyo stopped")
	return nil
}

// Handler returns the fully wired HTTP handler, for embedding in an
// existing server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// rendererAdapter bridges the public Renderer to the internal export
// interface, flattening the model types into the JSON-stable envelope.
type rendererAdapter struct {
	r Renderer
}

func (a *rendererAdapter) Render(ctx context.Context, matter model.Matter, doc model.SpecDocument, graph model.ClaimGraph) ([]byte, string, error) {
	specJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("render: marshal document: %w", err)
	}
	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return nil, "", fmt.Errorf("render: marshal claim graph: %w", err)
	}
	return a.r.Render(ctx, RenderInput{
		MatterID:   matter.ID.String(),
		Title:      matter.Title,
		Spec:       specJSON,
		ClaimGraph: graphJSON,
	})
}
