// Package server is the composition root: it builds the store, service
// and handlers from a config.Config, mounts them on a chi router and runs
// the HTTP server with graceful shutdown.
//
// ROUTES:
//
//	GET /            → plain-text greeting
//	GET /test        → {"message": "Server is working!"}
//	GET /api/users   → merged users, filtered by query parameters (CORS)
//	GET /metrics     → Prometheus exposition
//	anything else    → 404 {"error": "not_found", ...}
//
// NO STATE BETWEEN REQUESTS:
// The server owns no database and no cache. Every GET /api/users re-reads
// both exports from DataDir, so replacing a file on disk is picked up by
// the next request without a restart, and there is nothing to close on
// shutdown beyond the listener itself.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tinychef/UserData/internal/config"
	"github.com/tinychef/UserData/internal/handler"
	"github.com/tinychef/UserData/internal/metrics"
	"github.com/tinychef/UserData/internal/middleware"
	"github.com/tinychef/UserData/internal/repository/jsonfile"
	"github.com/tinychef/UserData/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	metrics *metrics.Registry
}

// New wires the dependency chain:
//
//	jsonfile.Store → service.UserService → handler.UserHandler → routes
//
// The config is validated here as well as in the CLI so that tests and
// other callers cannot build a Server that would fail only at Run time.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
	}
	s.setupRoutes()
	return s, nil
}

// NewUserService builds the merge service for cfg.
//
// It is exported because the merge CLI command needs exactly the same
// store → service wiring as the HTTP server, minus the router. Pass a nil
// registry when no /metrics endpoint will ever be scraped.
func NewUserService(cfg config.Config, reg *metrics.Registry, logger *slog.Logger) *service.UserService {
	store := jsonfile.New(cfg.DataDir, logger)
	return service.NewUserService(store, service.Sources{
		Billing:    cfg.BillingFile,
		Engagement: cfg.EngagementFile,
	}, reg, logger)
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
//  1. RequestID: assigns the id that Logger prints and echoes back
//  2. RealIP: rewrites RemoteAddr from X-Forwarded-For / X-Real-IP
//  3. Logger: one line per request, after the handler chain returns
//  4. Metrics: request count and latency by route pattern
//  5. Recoverer: turns a panic into a 500
//
// Recoverer sits INSIDE Logger and Metrics. If it were outside
// (added first), a panicking handler would unwind straight past Logger
// and Metrics and the request would be neither logged nor counted. With
// Recoverer innermost, the panic becomes a 500 before Logger sees the
// response, so a crash shows up as an ERROR line and a status="500" series.
//
// CORS ONLY ON /api:
// The browser frontend only ever calls /api/*. /, /test and /metrics are
// for humans, curl and Prometheus, none of which send preflights, so the
// CORS middleware is scoped to the /api sub-router.
func (s *Server) setupRoutes() {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	statusHandler := handler.NewStatusHandler(s.logger)
	userHandler := handler.NewUserHandler(NewUserService(s.config, s.metrics, s.logger), s.logger)

	// Unmatched paths get the same JSON error body as every other failure
	// instead of chi's plain-text "404 page not found".
	s.router.NotFound(statusHandler.HandleNotFound)

	s.router.Get("/", statusHandler.HandleHome)
	s.router.Get("/test", statusHandler.HandleTest)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300, // seconds a browser may cache the preflight
		}))
		r.Get("/users", userHandler.HandleList)
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. Serve takes ownership of ln and closes it.
//
// GRACEFUL SHUTDOWN:
// http.Server.Serve blocks, so it runs in its own goroutine and reports
// back on serverErrors. When ctx is cancelled, Shutdown stops accepting,
// waits for in-flight requests (bounded by shutdownTimeout) and makes
// Serve return http.ErrServerClosed, which ends that goroutine. Serve
// does not return until it has, so no goroutine outlives the call.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("data_dir", s.config.DataDir),
			slog.String("billing_file", s.config.BillingFile),
			slog.String("engagement_file", s.config.EngagementFile),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(shutdownCtx)
		<-serverErrors
		if shutdownErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
