package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/internal/adapters/ai"
	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/internal/sentiment"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/metrics"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

// DefaultSearchLimit is the number of posts requested from X per analysis
const DefaultSearchLimit = 100

// Outcome labels besides the decision labels
const (
	OutcomeNoResults  = "no_results"
	OutcomeValidation = "validation"
	OutcomeError      = "error"
)

// Result is everything one analysis produced
type Result struct {
	Analysis models.AnalysisOutput  `json:"analysis"`
	TopPosts []models.NormalizedPost `json:"top_posts"`
	Usage    *models.UsageReport     `json:"usage,omitempty"`
	Query    string                  `json:"query"`
}

// Service runs the analysis pipeline. Safe for concurrent use.
type Service struct {
	clients     ClientProvider
	compiler    *ai.Compiler
	ranker      *sentiment.Ranker
	directory   *twitter.Directory
	searchLimit int
	maxPosts    int
}

// NewService creates analysis service
func NewService(clients ClientProvider, compiler *ai.Compiler, ranker *sentiment.Ranker, directory *twitter.Directory) *Service {
	if directory == nil {
		directory = twitter.DefaultDirectory()
	}
	return &Service{
		clients:     clients,
		compiler:    compiler,
		ranker:      ranker,
		directory:   directory,
		searchLimit: DefaultSearchLimit,
		maxPosts:    MaxMaxPosts,
	}
}

// WithSearchLimit overrides how many posts are fetched per analysis
func (s *Service) WithSearchLimit(n int) *Service {
	if n > 0 {
		s.searchLimit = n
	}
	return s
}

// WithMaxPosts caps how many ranked posts any request may select
func (s *Service) WithMaxPosts(n int) *Service {
	if n > 0 {
		s.maxPosts = n
	}
	return s
}

// Analyze runs query, fetch, rank, prompt, model call and normalization for req.
// Returns ErrNoResults when there is nothing to analyze, *ValidationError when credentials
// are missing and *CollaboratorError when X or the model fails.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	res, err := s.analyze(ctx, req)
	s.recordOutcome(res, err)
	return res, err
}

func (s *Service) analyze(ctx context.Context, req Request) (*Result, error) {
	query := twitter.BuildSearchQuery(req.Token, twitter.QueryOptions{
		Lang:         req.Lang,
		FromHandle:   req.FromHandle,
		OfficialOnly: req.OfficialOnly,
		AnyContext:   req.AnyContext,
		Directory:    s.directory,
	})
	if query == "" {
		return nil, ErrNoResults
	}

	xapi, err := s.clients.X(req.Credentials)
	if err != nil {
		return nil, err
	}
	llm, err := s.clients.LLM(req.Credentials)
	if err != nil {
		return nil, err
	}

	logger.Debug("Searching posts",
		zap.String("token", req.Token),
		zap.String("query", query),
	)

	start := time.Now()
	posts, err := xapi.SearchRecent(ctx, query, s.searchLimit)
	metrics.ObserveStage(StageFetch, start)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageFetch, Err: err}
	}

	start = time.Now()
	sel := s.ranker.Rank(posts, min(req.MaxPosts, s.maxPosts))
	metrics.ObserveStage(StageRank, start)
	if len(sel.Evidence) == 0 {
		return nil, ErrNoResults
	}

	prompt, err := s.compiler.Compile(req.Action, twitter.NormalizeTicker(req.Token), sel.Evidence)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	out, err := s.decide(ctx, llm, prompt, req.Action, sel.IDs())
	metrics.ObserveStage(StageModel, start)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageModel, Err: err}
	}

	res := &Result{
		Analysis: out,
		TopPosts: sel.TopPosts,
		Query:    query,
	}

	if req.IncludeUsage {
		res.Usage = s.usage(ctx, xapi)
	}

	logger.Info("Analysis completed",
		zap.String("token", req.Token),
		zap.String("requested", string(out.RequestedAction)),
		zap.String("recommended", string(out.RecommendedAction)),
		zap.String("decision", string(out.Decision)),
		zap.Float64("confidence", out.Confidence),
		zap.Bool("fallback", ai.IsFallback(out)),
		zap.Int("posts", len(posts)),
		zap.Int("evidence", len(sel.Evidence)),
	)

	return res, nil
}

// decide calls the model and parses its reply, repairing once and falling back after that.
// Only transport errors are returned.
func (s *Service) decide(ctx context.Context, llm ai.Completer, prompt ai.Prompt, requested models.Action, ids []string) (models.AnalysisOutput, error) {
	raw, err := llm.Complete(ctx, prompt)
	if err != nil {
		return models.AnalysisOutput{}, err
	}

	out, perr := ai.ParseDecision(raw, requested, ids)
	if perr == nil {
		return out, nil
	}

	logger.Warn("Model reply rejected, requesting repair", zap.Error(perr))
	metrics.LLMRepairsTotal.Inc()

	raw, err = llm.Complete(ctx, prompt.WithRepair())
	if err != nil {
		return models.AnalysisOutput{}, err
	}

	out, perr = ai.ParseDecision(raw, requested, ids)
	if perr == nil {
		return out, nil
	}

	logger.Warn("Repaired reply rejected, using fallback", zap.Error(perr))
	metrics.LLMFallbacksTotal.Inc()

	return ai.Fallback(requested), nil
}

// Usage fetches the X project usage report on its own
func (s *Service) Usage(ctx context.Context, creds models.Credentials) (*models.UsageReport, error) {
	xapi, err := s.clients.X(creds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := xapi.Usage(ctx)
	metrics.ObserveStage(StageUsage, start)
	if err != nil {
		return nil, &CollaboratorError{Stage: StageUsage, Err: err}
	}

	metrics.SetXUsage(report.Usage, report.ProjectCap)
	return report, nil
}

func (s *Service) usage(ctx context.Context, xapi XAPI) *models.UsageReport {
	start := time.Now()
	report, err := xapi.Usage(ctx)
	metrics.ObserveStage(StageUsage, start)
	if err != nil {
		logger.Warn("Failed to fetch X usage", zap.Error(err))
		return nil
	}

	metrics.SetXUsage(report.Usage, report.ProjectCap)
	return report
}

func (s *Service) recordOutcome(res *Result, err error) {
	var verr *ValidationError
	switch {
	case err == nil:
		metrics.IncOutcome(string(res.Analysis.Decision))
	case errors.Is(err, ErrNoResults):
		metrics.IncOutcome(OutcomeNoResults)
	case errors.As(err, &verr):
		metrics.IncOutcome(OutcomeValidation)
	default:
		logger.Error("Analysis failed", zap.Error(err))
		metrics.IncOutcome(OutcomeError)
	}
}
