package api

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/analysis"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

// Analyzer is the subset of analysis.Service the API needs
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	Usage(ctx context.Context, creds models.Credentials) (*models.UsageReport, error)
}

// Options configures the HTTP server
type Options struct {
	Addr string
	// Timeout bounds one analysis, including both collaborator calls
	Timeout time.Duration
	// Gatherer backs /metrics; nil means the default registry
	Gatherer prometheus.Gatherer
}

// Server wraps chi.Router with base middlewares
type Server struct {
	router   chi.Router
	srv      *http.Server
	analyzer Analyzer
	timeout  time.Duration
}

// NewServer creates HTTP server
func NewServer(analyzer Analyzer, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		analyzer: analyzer,
		timeout:  opts.Timeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/usage", s.handleUsage)
	})

	s.router = r
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: opts.Timeout + 15*time.Second,
	}

	return s
}

// Handler returns the root router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs http.Server until Shutdown
func (s *Server) Start() error {
	logger.Info("HTTP server starting", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("stopping HTTP server...")
	return s.srv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
