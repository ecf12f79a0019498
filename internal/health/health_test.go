package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthAlwaysOK(t *testing.T) {
	s := NewServer(":0", map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("down") }),
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("liveness must not depend on dependencies, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	var redisErr error
	s := NewServer(":0", map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return redisErr }),
		"skip":  nil,
	})

	tests := []struct {
		name   string
		ready  bool
		err    error
		status int
	}{
		{"starting", false, nil, http.StatusServiceUnavailable},
		{"ready", true, nil, http.StatusOK},
		{"redis down", true, errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetReady(tt.ready)
			redisErr = tt.err

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}

			var body ReadinessStatus
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body.Checks["skip"]; ok {
				t.Error("nil checks must be skipped")
			}
			if body.Checks["redis"] == "" {
				t.Error("redis check missing")
			}
		})
	}
}
