package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/selivandex/sentiment-gate/internal/adapters/ai"
	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/internal/sentiment"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const goodReply = `{"requested_action":"BUY","recommended_action":"BUY","decision":"ALLOW","bias":"BULLISH","confidence":0.75,"reason":"momentum","key_factors":["volume"],"post_ids_used":["p1","p2"],"safety_notes":"size small"}`

type fakeX struct {
	posts     []models.RawPost
	searchErr error
	usage     *models.UsageReport
	usageErr  error

	queries    []string
	usageCalls int
}

func (f *fakeX) SearchRecent(_ context.Context, query string, _ int) ([]models.RawPost, error) {
	f.queries = append(f.queries, query)
	return f.posts, f.searchErr
}

func (f *fakeX) Usage(context.Context) (*models.UsageReport, error) {
	f.usageCalls++
	return f.usage, f.usageErr
}

type fakeLLM struct {
	replies []string
	err     error
	prompts []ai.Prompt
}

func (f *fakeLLM) Complete(_ context.Context, p ai.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type fakeClients struct {
	x      *fakeX
	llm    *fakeLLM
	xErr   error
	llmErr error
	creds  []models.Credentials
}

func (f *fakeClients) X(c models.Credentials) (XAPI, error) {
	f.creds = append(f.creds, c)
	if f.xErr != nil {
		return nil, f.xErr
	}
	return f.x, nil
}

func (f *fakeClients) LLM(models.Credentials) (ai.Completer, error) {
	if f.llmErr != nil {
		return nil, f.llmErr
	}
	return f.llm, nil
}

func testPosts() []models.RawPost {
	return []models.RawPost{
		{ID: "p1", Text: "SOL breaking out", CreatedAt: testNow.Add(-10 * time.Minute), AuthorUsername: "alice", LikeCount: 50},
		{ID: "p2", Text: "SOL looks strong", CreatedAt: testNow.Add(-20 * time.Minute), AuthorUsername: "bob", LikeCount: 20},
		{ID: "p3", Text: "not sure about SOL", CreatedAt: testNow.Add(-3 * time.Hour), AuthorUsername: "carol", LikeCount: 5},
	}
}

func newTestService(t *testing.T, clients ClientProvider) *Service {
	t.Helper()
	compiler, err := ai.NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler failed: %v", err)
	}
	ranker := sentiment.NewRanker().WithClock(func() time.Time { return testNow })
	return NewService(clients, compiler, ranker, nil)
}

func buyRequest() Request {
	return Request{
		Token:    "SOL",
		Action:   models.ActionBuy,
		MaxPosts: DefaultMaxPosts,
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	x := &fakeX{posts: testPosts()}
	llm := &fakeLLM{replies: []string{goodReply}}
	svc := newTestService(t, &fakeClients{x: x, llm: llm})

	res, err := svc.Analyze(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.Analysis.Decision != models.DecisionAllow {
		t.Errorf("expected ALLOW, got %s", res.Analysis.Decision)
	}
	if len(res.TopPosts) != 3 || res.TopPosts[0].ID != "p1" {
		t.Errorf("unexpected top posts %+v", res.TopPosts)
	}
	if len(llm.prompts) != 1 {
		t.Errorf("expected exactly one model call, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0].User, "token=SOL") || !strings.Contains(llm.prompts[0].User, `"id":"p1"`) {
		t.Errorf("prompt missing token or evidence: %s", llm.prompts[0].User)
	}
	if len(x.queries) != 1 || x.queries[0] != res.Query {
		t.Errorf("query not propagated: %v vs %q", x.queries, res.Query)
	}
	if x.usageCalls != 0 || res.Usage != nil {
		t.Error("usage must not be fetched unless requested")
	}
}

func TestAnalyzeRepairThenSuccess(t *testing.T) {
	llm := &fakeLLM{replies: []string{"I think you should buy", goodReply}}
	svc := newTestService(t, &fakeClients{x: &fakeX{posts: testPosts()}, llm: llm})

	res, err := svc.Analyze(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(llm.prompts) != 2 {
		t.Fatalf("expected repair call, got %d calls", len(llm.prompts))
	}
	if llm.prompts[0].Repair || !llm.prompts[1].Repair {
		t.Error("only the second call should carry the repair instruction")
	}
	if ai.IsFallback(res.Analysis) {
		t.Error("repaired reply should be used")
	}
}

func TestAnalyzeFallbackAfterFailedRepair(t *testing.T) {
	llm := &fakeLLM{replies: []string{"nope", `{"decision":"ALLOW"}`}}
	svc := newTestService(t, &fakeClients{x: &fakeX{posts: testPosts()}, llm: llm})

	res, err := svc.Analyze(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(llm.prompts) != 2 {
		t.Errorf("expected two model calls, got %d", len(llm.prompts))
	}
	if !ai.IsFallback(res.Analysis) {
		t.Errorf("expected fallback, got %+v", res.Analysis)
	}
	if res.Analysis.RequestedAction != models.ActionBuy {
		t.Error("fallback must echo the requested action")
	}
	if len(res.TopPosts) != 3 {
		t.Error("top posts are returned even on fallback")
	}
}

func TestAnalyzeReverse(t *testing.T) {
	reply := strings.NewReplacer(
		`"recommended_action":"BUY"`, `"recommended_action":"SELL"`,
		`"bias":"BULLISH"`, `"bias":"BEARISH"`,
	).Replace(goodReply)
	llm := &fakeLLM{replies: []string{reply}}
	svc := newTestService(t, &fakeClients{x: &fakeX{posts: testPosts()}, llm: llm})

	res, err := svc.Analyze(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Analysis.Decision != models.DecisionReverse {
		t.Errorf("expected REVERSE, got %s", res.Analysis.Decision)
	}
}

func TestAnalyzeNoResults(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		clients := &fakeClients{x: &fakeX{}, llm: &fakeLLM{}}
		svc := newTestService(t, clients)

		req := buyRequest()
		req.Token = "$"
		_, err := svc.Analyze(context.Background(), req)
		if !errors.Is(err, ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
		if len(clients.creds) != 0 {
			t.Error("no client should be resolved for an empty query")
		}
	})

	t.Run("no posts", func(t *testing.T) {
		llm := &fakeLLM{}
		svc := newTestService(t, &fakeClients{x: &fakeX{}, llm: llm})

		_, err := svc.Analyze(context.Background(), buyRequest())
		if !errors.Is(err, ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
		if len(llm.prompts) != 0 {
			t.Error("model must not be called without evidence")
		}
	})
}

func TestAnalyzeCollaboratorErrors(t *testing.T) {
	apiErr := &twitter.APIError{Category: twitter.CategoryRateLimited, Status: 429, Message: "rate limited"}

	t.Run("fetch", func(t *testing.T) {
		svc := newTestService(t, &fakeClients{x: &fakeX{searchErr: apiErr}, llm: &fakeLLM{}})

		_, err := svc.Analyze(context.Background(), buyRequest())

		var cerr *CollaboratorError
		if !errors.As(err, &cerr) || cerr.Stage != StageFetch {
			t.Fatalf("expected fetch CollaboratorError, got %v", err)
		}
		var target *twitter.APIError
		if !errors.As(err, &target) || target.Category != twitter.CategoryRateLimited {
			t.Errorf("APIError should be reachable through the wrapper, got %v", err)
		}
	})

	t.Run("model", func(t *testing.T) {
		llm := &fakeLLM{err: errors.New("OpenAI: boom")}
		svc := newTestService(t, &fakeClients{x: &fakeX{posts: testPosts()}, llm: llm})

		_, err := svc.Analyze(context.Background(), buyRequest())

		var cerr *CollaboratorError
		if !errors.As(err, &cerr) || cerr.Stage != StageModel {
			t.Fatalf("expected model CollaboratorError, got %v", err)
		}
		if err.Error() != "OpenAI: boom" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}

func TestAnalyzeMissingCredentials(t *testing.T) {
	verr := &ValidationError{Fields: map[string]string{"credentials": "missing"}}
	svc := newTestService(t, &fakeClients{xErr: verr})

	_, err := svc.Analyze(context.Background(), buyRequest())

	var got *ValidationError
	if !errors.As(err, &got) || got.Fields["credentials"] == "" {
		t.Errorf("expected credentials ValidationError, got %v", err)
	}
}

func TestAnalyzeUsage(t *testing.T) {
	t.Run("attached", func(t *testing.T) {
		report := models.NewUsageReport("p", 100, 1000, 1, nil)
		x := &fakeX{posts: testPosts(), usage: report}
		svc := newTestService(t, &fakeClients{x: x, llm: &fakeLLM{replies: []string{goodReply}}})

		req := buyRequest()
		req.IncludeUsage = true
		res, err := svc.Analyze(context.Background(), req)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if res.Usage != report {
			t.Errorf("expected usage report, got %+v", res.Usage)
		}
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		x := &fakeX{posts: testPosts(), usageErr: errors.New("down")}
		svc := newTestService(t, &fakeClients{x: x, llm: &fakeLLM{replies: []string{goodReply}}})

		req := buyRequest()
		req.IncludeUsage = true
		res, err := svc.Analyze(context.Background(), req)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if res.Usage != nil || x.usageCalls != 1 {
			t.Errorf("expected one failed usage call and no report, got %+v", res.Usage)
		}
	})

	t.Run("standalone", func(t *testing.T) {
		x := &fakeX{usageErr: errors.New("down")}
		svc := newTestService(t, &fakeClients{x: x})

		_, err := svc.Usage(context.Background(), models.Credentials{})

		var cerr *CollaboratorError
		if !errors.As(err, &cerr) || cerr.Stage != StageUsage {
			t.Errorf("expected usage CollaboratorError, got %v", err)
		}
	})
}

func TestAnalyzePassesCredentials(t *testing.T) {
	clients := &fakeClients{x: &fakeX{posts: testPosts()}, llm: &fakeLLM{replies: []string{goodReply}}}
	svc := newTestService(t, clients)

	req := buyRequest()
	req.Credentials = models.Credentials{XBearerToken: "user-token"}
	if _, err := svc.Analyze(context.Background(), req); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(clients.creds) != 1 || clients.creds[0].XBearerToken != "user-token" {
		t.Errorf("credentials not forwarded: %+v", clients.creds)
	}
}

func TestAnalyzeMaxPostsCap(t *testing.T) {
	svc := newTestService(t, &fakeClients{x: &fakeX{posts: testPosts()}, llm: &fakeLLM{replies: []string{goodReply}}}).
		WithMaxPosts(2)

	res, err := svc.Analyze(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(res.TopPosts) != 2 {
		t.Errorf("expected server cap of 2 posts, got %d", len(res.TopPosts))
	}
}
