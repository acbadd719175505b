package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/proxy/handlers"
	"labsight/gateway/pkg/proxy/middleware"
	"labsight/gateway/pkg/telemetry/health"
	"labsight/gateway/pkg/telemetry/metrics"
	"labsight/gateway/pkg/telemetry/tracing"
	"labsight/gateway/pkg/upload"
)

// API routes.
const (
	RouteChat         = "/api/chat"
	RouteUpload       = "/api/upload"
	RouteUploadStatus = "/api/upload/status"
	RouteUploadRecent = "/api/upload/recent"
)

// rateLimitPruneInterval is how often idle rate limit windows are dropped.
const rateLimitPruneInterval = time.Minute

// Deps carries the collaborators the routes need.
type Deps struct {
	// Backend forwards chat, status and recent requests. Required.
	Backend handlers.Forwarder

	// Uploader writes uploads. Nil, or one without a store, answers 503.
	Uploader *upload.Uploader

	Metrics *metrics.Collector
	Health  *health.Checker

	Version   string
	Commit    string
	BuildTime string
}

// Server is the gateway's HTTP server.
type Server struct {
	config       *config.Config
	deps         Deps
	limiter      *middleware.RateLimiter
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server for cfg.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.New(cfg.Telemetry.Health.CheckTimeout)
	}
	s := &Server{
		config:       cfg,
		deps:         deps,
		shutdownChan: make(chan struct{}),
	}
	if cfg.Server.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Server.RateLimit)
	}
	return s
}

// Start serves until ctx is canceled, a termination signal arrives or
// Stop is called, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	sc := s.config.Server
	s.httpServer = &http.Server{
		Addr:              sc.ListenAddress,
		Handler:           s.Handler(),
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	if s.limiter != nil {
		go s.pruneRateLimits(pruneCtx)
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server", "address", sc.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests, including open streams, up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		timeout := s.config.Server.ShutdownTimeout
		slog.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routes wrapped in the middleware chain:
// recovery, request ID, logging, tracing, CORS, rate limiting.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()

	if s.limiter != nil {
		handler = middleware.RateLimitMiddleware(s.limiter, s.deps.Metrics)(handler)
	}
	handler = middleware.CORSMiddleware(s.config.Server.CORS)(handler)
	handler = tracing.Middleware("labsight.http")(handler)
	handler = middleware.LoggingMiddleware(s.deps.Metrics)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	t := s.config.Telemetry

	mux.Handle("POST "+RouteChat, handlers.NewChatHandler(s.deps.Backend, s.deps.Metrics))
	mux.Handle("GET "+RouteUploadStatus, handlers.NewStatusHandler(s.deps.Backend))
	mux.Handle("GET "+RouteUploadRecent, handlers.NewRecentHandler(s.deps.Backend))
	mux.Handle("POST "+RouteUpload, handlers.NewUploadHandler(s.deps.Uploader, s.config.Upload.MaxSizeBytes))

	mux.Handle(t.Health.LivenessPath, s.deps.Health.LivenessHandler())
	mux.Handle(t.Health.ReadinessPath, s.deps.Health.ReadinessHandler())
	mux.Handle(t.Health.VersionPath, health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if t.Metrics.Enabled && s.deps.Metrics != nil {
		mux.Handle("GET "+t.Metrics.Path, s.deps.Metrics.Handler())
	}

	return mux
}

func (s *Server) pruneRateLimits(ctx context.Context) {
	ticker := time.NewTicker(rateLimitPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Prune()
		}
	}
}
