package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	AnalysisRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_requests_total",
		Help: "Sentiment analyses by outcome (decision label, no_results, validation, error)",
	}, []string{"outcome"})

	AnalysisStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_stage_duration_seconds",
		Help:    "Duration of each analysis pipeline stage",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"stage"})

	LLMRepairsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "llm_repairs_total",
		Help: "Repair calls issued after an invalid model response",
	})

	LLMFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "llm_fallbacks_total",
		Help: "Analyses that ended with the fallback decision",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outbound network requests",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60, 90},
	}, []string{"component", "operation", "status"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Tokens consumed by the LLM",
	}, []string{"model", "type"})

	XUsageProjectUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "x_usage_project_usage",
		Help: "Posts consumed by the X project in the current cycle",
	})

	XUsageProjectCap = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "x_usage_project_cap",
		Help: "Post cap of the X project for the current cycle",
	})
)

// MustRegister registers package collectors once
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			AnalysisRequestsTotal,
			AnalysisStageDuration,
			LLMRepairsTotal,
			LLMFallbacksTotal,
			NetworkRequestDuration,
			LLMTokensTotal,
			XUsageProjectUsage,
			XUsageProjectCap,
		)
	})
}

// ObserveStage records how long a pipeline stage took
func ObserveStage(stage string, start time.Time) {
	AnalysisStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncOutcome counts one finished analysis
func IncOutcome(outcome string) {
	AnalysisRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNetworkRequest records duration and status of an outbound call.
// status is the HTTP code when known, otherwise "error" or "success".
func ObserveNetworkRequest(component, operation string, start time.Time, statusCode int, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}

	status := "success"
	switch {
	case statusCode > 0:
		status = strconv.Itoa(statusCode)
	case err != nil:
		status = "error"
	}

	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
}

// ObserveLLMTokens adds token usage reported by the provider
func ObserveLLMTokens(model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// SetXUsage publishes the latest usage snapshot
func SetXUsage(usage, capacity int64) {
	XUsageProjectUsage.Set(float64(usage))
	XUsageProjectCap.Set(float64(capacity))
}
