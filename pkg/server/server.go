// Package server serves rendered npm audit reports over HTTP.
//
// Routes:
//
//	POST /v1/reports  raw `npm audit --json` body → HTML (or the format
//	                  negotiated from ?format= or Accept)
//	POST /v1/summary  raw audit body → counts and optional gate verdict
//	GET  /healthz     liveness probe
//	GET  /metrics     Prometheus metrics, when a handler is configured
//
// Both POST routes accept ?policy=<name|path> to evaluate a gate policy.
// Rendered responses carry an ETag so unchanged audits revalidate cheaply.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output"
)

// Config configures the report server.
type Config struct {
	// Addr is the listen address (default: defaults.ServeAddr).
	Addr string

	// Pipeline renders every request. Required.
	Pipeline *output.Pipeline

	// Policy is the default gate policy reference; ?policy= overrides it.
	Policy string

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// RateLimit and Burst bound POST requests across all clients.
	RateLimit rate.Limit
	Burst     int

	// MaxBodyBytes caps request bodies (default: defaults.MaxAuditBytes).
	MaxBodyBytes int64

	Logger *slog.Logger
}

// Server is the HTTP surface of auditview.
type Server struct {
	cfg     Config
	router  chi.Router
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaults.ServeAddr
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Limit(defaults.RateLimitPerSecond)
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaults.RateLimitBurst
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaults.MaxAuditBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:  logger,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/reports", s.handleReport)
		r.Post("/summary", s.handleSummary)
	})
	return r
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to defaults.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: defaults.ReadHeaderTimeout,
		WriteTimeout:      defaults.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving reports", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaults.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "ok", Service: defaults.ToolName, Version: defaults.Version})
}

// readBody reads at most MaxBodyBytes. It writes the error response
// itself and returns false when the body is unusable.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Sprintf("audit exceeds %d bytes", s.cfg.MaxBodyBytes))
			return nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, codeBadRequest, "failed to read request body")
		return nil, false
	}
	if len(data) == 0 {
		s.writeError(w, r, http.StatusBadRequest, codeBadRequest, "empty request body; send the output of `npm audit --json`")
		return nil, false
	}
	return data, true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
