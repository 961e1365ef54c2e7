package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tokkyo-ai/tokkyo/internal/auth"
	"github.com/tokkyo-ai/tokkyo/internal/model"
	"github.com/tokkyo-ai/tokkyo/internal/ratelimit"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Limiter, when set, enforces per-tenant request rate limits.
	Limiter ratelimit.Limiter

	// Middlewares are applied outermost-first around the whole chain.
	Middlewares []func(http.Handler) http.Handler
}

// Server is the tokkyo HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// New builds the server, wiring all routes and middleware.
func New(cfg ServerConfig, handlers *Handlers, jwtMgr *auth.JWTManager, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	h := handlers

	// Commits, lock and export change the authoritative record of a matter
	// and are restricted to attorneys. Admins retain full access for
	// operational recovery.
	signoff := func(next http.HandlerFunc) http.Handler {
		return requireRole(model.RoleAttorney, model.RoleAdmin)(next)
	}

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)
	mux.HandleFunc("POST /auth/token", h.HandleAuthToken)

	mux.HandleFunc("POST /v1/matters", h.HandleCreateMatter)
	mux.HandleFunc("GET /v1/matters", h.HandleListMatters)
	mux.HandleFunc("GET /v1/matters/{id}", h.HandleGetMatter)
	mux.Handle("POST /v1/matters/{id}/status", signoff(h.HandleUpdateStatus))
	mux.HandleFunc("GET /v1/matters/{id}/audit", h.HandleListAudit)
	mux.HandleFunc("GET /v1/matters/{id}/audit/verify", h.HandleVerifyAudit)

	mux.HandleFunc("POST /v1/matters/{id}/brief/analyze", h.HandleAnalyzeBrief)
	mux.Handle("POST /v1/matters/{id}/brief/{version_id}/approve", signoff(h.HandleApproveBrief))
	mux.HandleFunc("GET /v1/matters/{id}/brief/versions", h.HandleListVersions(model.KindBrief))

	mux.HandleFunc("POST /v1/matters/{id}/claims/generate", h.HandleGenerateClaims)
	mux.Handle("POST /v1/matters/{id}/claims/{version_id}/commit", signoff(h.HandleCommitClaims))
	mux.HandleFunc("GET /v1/matters/{id}/claims/versions", h.HandleListVersions(model.KindClaimGraph))
	mux.HandleFunc("GET /v1/matters/{id}/claims/versions/{version_id}", h.HandleGetVersion(model.KindClaimGraph))
	mux.HandleFunc("PATCH /v1/matters/{id}/claims/{version_id}/nodes/{node_id}", h.HandleEditClaim)
	mux.HandleFunc("POST /v1/matters/{id}/claims/{version_id}/nodes", h.HandleAddClaim)
	mux.HandleFunc("DELETE /v1/matters/{id}/claims/{version_id}/nodes/{node_id}", h.HandleDeleteClaim)

	mux.HandleFunc("POST /v1/matters/{id}/risk/analyze", h.HandleAnalyzeRisk)
	mux.Handle("POST /v1/matters/{id}/risk/{version_id}/commit", signoff(h.HandleCommitRisk))
	mux.HandleFunc("POST /v1/matters/{id}/risk/re-evaluate", h.HandleReEvaluateRisk)
	mux.Handle("POST /v1/matters/{id}/risk/{version_id}/commit-re-evaluation", signoff(h.HandleCommitRiskReEvaluation))
	mux.HandleFunc("GET /v1/matters/{id}/risk/versions", h.HandleListVersions(model.KindRisk))

	mux.HandleFunc("POST /v1/matters/{id}/spec/generate", h.HandleGenerateSpec)
	mux.Handle("POST /v1/matters/{id}/spec/{version_id}/commit", signoff(h.HandleCommitSpec))
	mux.HandleFunc("PATCH /v1/matters/{id}/spec/{version_id}/paragraphs/{paragraph_id}", h.HandleEditParagraph)
	mux.HandleFunc("GET /v1/matters/{id}/spec/versions", h.HandleListVersions(model.KindSpec))

	mux.HandleFunc("POST /v1/matters/{id}/qa/validate", h.HandleValidateQA)
	mux.Handle("POST /v1/matters/{id}/qa/{version_id}/commit", signoff(h.HandleCommitQA))
	mux.HandleFunc("GET /v1/matters/{id}/qa/versions", h.HandleListVersions(model.KindQAReport))

	mux.Handle("POST /v1/matters/{id}/lock", signoff(h.HandleLockMatter))
	mux.Handle("POST /v1/matters/{id}/export", signoff(h.HandleExportMatter))

	var root http.Handler = mux
	root = recoveryMiddleware(logger, root)
	if cfg.Limiter != nil {
		// Inside auth so authenticated requests are keyed by tenant.
		reqID := func(r *http.Request) string { return RequestIDFromContext(r.Context()) }
		root = ratelimit.Middleware(cfg.Limiter, logger, reqID)(root)
	}
	root = authMiddleware(jwtMgr, root)
	root = loggingMiddleware(logger, root)
	root = tracingMiddleware(root)
	root = securityHeadersMiddleware(root)
	root = requestIDMiddleware(root)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		root = cfg.Middlewares[i](root)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + strconv.Itoa(cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  root,
		handlers: handlers,
		logger:   logger,
	}
}

// Handler returns the fully wired root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers returns the underlying Handlers for access to SeedAdmin.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
