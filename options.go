package tokkyo

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	logger          *slog.Logger
	version         string
	renderer        Renderer
	retriever       PriorArtRetriever
	middlewares     []Middleware
	extraMigrations []fs.FS
}

// Renderer produces the filing document from the rendered export input.
// Firms with letterhead or DOCX template requirements implement this and
// register it with WithRenderer.
type Renderer interface {
	Render(ctx context.Context, input RenderInput) (data []byte, filename string, err error)
}

// RenderInput is the JSON-stable envelope handed to a custom Renderer.
type RenderInput struct {
	MatterID   string `json:"matter_id"`
	Title      string `json:"title"`
	Spec       []byte `json:"spec"`
	ClaimGraph []byte `json:"claim_graph"`
}

// PriorArtRetriever supplies prior-art passages to the drafting pipeline.
type PriorArtRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]string, error)
}

// Middleware wraps the HTTP handler chain.
type Middleware func(http.Handler) http.Handler

// WithPort overrides the TCP port from config (TOKKYO_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithRenderer replaces the export renderer. Only the last call wins.
func WithRenderer(r Renderer) Option {
	return func(o *resolvedOptions) { o.renderer = r }
}

// WithPriorArtRetriever replaces the prior-art retrieval client used by the
// drafting pipeline. Only the last call wins.
func WithPriorArtRetriever(r PriorArtRetriever) Option {
	return func(o *resolvedOptions) { o.retriever = r }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the embedded migrations. Applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
