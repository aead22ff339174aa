package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/allstar-api/internal/config"
	"github.com/janisto/allstar-api/internal/http/v1/routes"
	applog "github.com/janisto/allstar-api/internal/platform/logging"
	"github.com/janisto/allstar-api/internal/platform/metrics"
	appmiddleware "github.com/janisto/allstar-api/internal/platform/middleware"
	"github.com/janisto/allstar-api/internal/platform/respond"
	"github.com/janisto/allstar-api/internal/platform/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const (
	openAPIPath = "/openapi"
	docsPath    = "/docs"
	schemasPath = "/schemas"
	metricsPath = "/metrics"
)

func main() {
	if err := run(); err != nil {
		applog.LogFatal(context.Background(), "server failed", err)
	}
}

func run() error {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	srv := server.New(cfg.Addr(), newHandler(cfg, collector), server.Timeouts{
		Read:       cfg.Timeouts.Read,
		ReadHeader: cfg.Timeouts.ReadHeader,
		Write:      cfg.Timeouts.Write,
		Idle:       cfg.Timeouts.Idle,
	})
	if err := srv.Listen(); err != nil {
		return err
	}
	applog.SugarFromContext(context.Background()).Infow("server listening",
		"addr", srv.Addr(),
		"version", Version,
		"logLevel", applog.Level().String(),
		"docs", cfg.DocsEnabled,
		"metrics", cfg.MetricsEnabled,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-serveErr:
		if err == nil {
			err = errors.New("server stopped unexpectedly")
		}
		return err
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
	return nil
}

// newHandler builds the full router. collector may be nil when metrics are disabled.
func newHandler(cfg *config.Config, collector *metrics.Collector) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	var skipSecurity []string
	if cfg.DocsEnabled {
		skipSecurity = append(skipSecurity, docsPath)
	}

	// Base middleware stack
	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(skipSecurity...),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORSAllowedOrigins...),
		appmiddleware.RequestID(),
		// RealIP extracts client IP from X-Real-IP or X-Forwarded-For headers.
		// SECURITY: Only use behind a trusted reverse proxy (e.g., Cloud Run, nginx).
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1 << 20), // 1 MB limit
		applog.RequestLogger(cfg.ProjectID),
	}
	if collector != nil {
		stack = append(stack, collector.Middleware())
	}
	stack = append(stack, applog.AccessLogger(), respond.Recoverer())
	router.Use(stack...)

	api := humachi.New(router, newAPIConfig(cfg.DocsEnabled))
	addCBORContentTypes(api)
	routes.Register(api)

	if collector != nil {
		router.Method(http.MethodGet, metricsPath, collector.Handler())
	}
	return router
}

// newAPIConfig returns the huma config. Response bodies carry no $schema
// link, and the OpenAPI, docs and schema routes exist only when docs are enabled.
func newAPIConfig(docs bool) huma.Config {
	cfg := huma.DefaultConfig("All Star API", Version)
	cfg.Info.Description = "Serves a single fixed message at GET /test."
	cfg.CreateHooks = nil
	cfg.OpenAPIPath = ""
	cfg.DocsPath = ""
	cfg.SchemasPath = ""
	if docs {
		cfg.OpenAPIPath = openAPIPath
		cfg.DocsPath = docsPath
		cfg.SchemasPath = schemasPath
	}
	return cfg
}

// addCBORContentTypes mirrors every JSON request and response media type as CBOR
// in the OpenAPI document.
func addCBORContentTypes(api huma.API) {
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation,
		func(_ *huma.OpenAPI, op *huma.Operation) {
			if op.RequestBody != nil && op.RequestBody.Content != nil {
				if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
					op.RequestBody.Content["application/cbor"] = jsonContent
				}
			}
			for _, resp := range op.Responses {
				if resp.Content == nil {
					continue
				}
				if jsonContent, ok := resp.Content["application/json"]; ok {
					resp.Content["application/cbor"] = jsonContent
				}
			}
		},
	)
}
