package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/analysis"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

const (
	maxBodyBytes = 64 << 10

	// Header overrides for GET /usage, which has no body
	headerXBearerToken = "X-Bearer-Token"
	headerOpenAIKey    = "X-OpenAI-Key"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var form analysis.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid form data"})
		return
	}

	req, err := analysis.ParseRequest(form)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	creds := models.Credentials{
		XBearerToken: strings.TrimSpace(r.Header.Get(headerXBearerToken)),
		OpenAIAPIKey: strings.TrimSpace(r.Header.Get(headerOpenAIKey)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	report, err := s.analyzer.Usage(ctx, creds)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeError maps the analysis error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var verr *analysis.ValidationError
	var cerr *analysis.CollaboratorError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, analysis.ErrNoResults):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: analysis.NoResultsMessage})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "Analysis timed out. Try again."})
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: cerr.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong. Try again."})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}
