package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides health check HTTP endpoints for K8s
type Server struct {
	server    *http.Server
	checks    map[string]Pinger
	ready     bool
	readyMu   sync.RWMutex
	startTime time.Time
}

// HealthStatus represents system health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// NewServer creates new health check server. checks maps a dependency name
// to its probe; nil entries are skipped.
func NewServer(addr string, checks map[string]Pinger) *Server {
	mux := http.NewServeMux()

	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}

	s := &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		checks:    active,
		startTime: time.Now(),
	}

	mux.HandleFunc("/health", s.handleHealth)    // Liveness probe
	mux.HandleFunc("/ready", s.handleReadiness)  // Readiness probe
	mux.HandleFunc("/healthz", s.handleHealth)   // Alias
	mux.HandleFunc("/readyz", s.handleReadiness) // Alias

	return s
}

// Handler exposes the probe mux
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the health check server
func (s *Server) Start() error {
	logger.Info("health check server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping health check server...")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service as ready
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready

	if ready {
		logger.Info("service marked as READY")
	} else {
		logger.Warn("service marked as NOT READY")
	}
}

func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	healthy := true
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}

// handleHealth handles liveness probe - /health
// Returns 200 if process is alive (even if dependencies are down)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	if r.URL.Query().Get("verbose") == "true" {
		status.Checks, _ = s.runChecks(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// handleReadiness handles readiness probe - /ready
// Returns 200 only if startup finished and every dependency answers
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.readyMu.RLock()
	ready := s.ready
	s.readyMu.RUnlock()

	checks, allHealthy := s.runChecks(r.Context())
	isReady := ready && allHealthy

	status := ReadinessStatus{
		Ready:     isReady,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if isReady {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}
