package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/selivandex/sentiment-gate/internal/adapters/ai"
	"github.com/selivandex/sentiment-gate/internal/adapters/config"
	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/internal/analysis"
	"github.com/selivandex/sentiment-gate/internal/sentiment"
	"github.com/selivandex/sentiment-gate/pkg/logger"
)

func main() {
	// Parse flags
	var (
		token    = flag.String("token", "", "Token ticker, e.g. SOL or $SOL")
		action   = flag.String("action", "BUY", "Requested action (BUY/SELL)")
		official = flag.Bool("official", false, "Only posts from the project's official account")
		handle   = flag.String("handle", "", "Only posts from this X account (implies -official)")
		english  = flag.Bool("en", false, "Only English posts")
		maxPosts = flag.Int("max", analysis.DefaultMaxPosts, "Evidence posts sent to the model (1-100)")
		asJSON   = flag.Bool("json", false, "Print the raw JSON result")
		usage    = flag.Bool("usage", false, "Attach X API usage to the result")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	form := analysis.Form{
		Token:        *token,
		Action:       *action,
		XHandle:      *handle,
		MaxPosts:     *maxPosts,
		OfficialOnly: *official,
		EnglishOnly:  *english,
		IncludeUsage: usage,
	}

	if err := run(ctx, form, *asJSON, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, form analysis.Form, asJSON bool, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout carries the result; logs stay quiet unless asked for
	level := cfg.Logging.Level
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	if err := logger.Init(level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	req, err := analysis.ParseRequest(form)
	if err != nil {
		return err
	}

	compiler, err := ai.NewCompiler()
	if err != nil {
		return err
	}

	service := analysis.NewService(
		analysis.NewClients(analysis.ClientsConfigFrom(cfg)),
		compiler,
		sentiment.NewRanker(),
		twitter.NewDirectory(cfg.Tokens.ProjectNames, cfg.Tokens.OfficialHandles),
	).WithSearchLimit(cfg.X.MaxResults).WithMaxPosts(cfg.Analysis.MaxPosts)

	ctx, cancel := context.WithTimeout(ctx, cfg.Analysis.Timeout)
	defer cancel()

	result, err := service.Analyze(ctx, req)
	if errors.Is(err, analysis.ErrNoResults) {
		fmt.Fprintln(out, analysis.NoResultsMessage)
		return nil
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(out, result)
	return nil
}

func printResult(out io.Writer, res *analysis.Result) {
	a := res.Analysis

	fmt.Fprintf(out, "Query:       %s\n", res.Query)
	fmt.Fprintf(out, "Decision:    %s (requested %s, recommended %s)\n", a.Decision, a.RequestedAction, a.RecommendedAction)
	fmt.Fprintf(out, "Bias:        %s, confidence %.0f%%\n", a.Bias, a.Confidence*100)
	fmt.Fprintf(out, "Reason:      %s\n", a.Reason)
	if len(a.KeyFactors) > 0 {
		fmt.Fprintf(out, "Factors:     %s\n", strings.Join(a.KeyFactors, "; "))
	}
	if a.SafetyNotes != "" {
		fmt.Fprintf(out, "Safety:      %s\n", a.SafetyNotes)
	}

	fmt.Fprintf(out, "\nTop posts (%d):\n", len(res.TopPosts))
	for i, p := range res.TopPosts {
		author := p.AuthorUsername
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(out, "%3d. @%-16s %5d eng  %s\n", i+1, author, p.EngagementScore, oneLine(p.Text, 100))
	}

	if u := res.Usage; u != nil {
		fmt.Fprintf(out, "\nX usage: %d of %d (%s%%), %d remaining\n", u.Usage, u.ProjectCap, u.UsedPercent.String(), u.Remaining())
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
