package telegram

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	redisAdapter "github.com/selivandex/sentiment-gate/internal/adapters/redis"
	"github.com/selivandex/sentiment-gate/internal/analysis"
	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/models"
	"github.com/selivandex/sentiment-gate/pkg/templates"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	defaultTopPosts = 3
	maxPostPreview  = 160
)

// Analyzer is the subset of analysis.Service the bot needs
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
	Usage(ctx context.Context, creds models.Credentials) (*models.UsageReport, error)
}

// CredentialStore keeps per-chat API keys
type CredentialStore interface {
	Save(ctx context.Context, chatID int64, creds models.Credentials) error
	Load(ctx context.Context, chatID int64) (models.Credentials, bool, error)
	Forget(ctx context.Context, chatID int64) error
}

// Reply is the bot's answer to one command
type Reply struct {
	Text string
	// DeleteCommand asks the transport to remove the user's message (it carried secrets)
	DeleteCommand bool
}

// HandlerConfig configures command handling
type HandlerConfig struct {
	// Timeout bounds one analysis
	Timeout time.Duration
	// KeysTTL is how long /keys are kept; shown in /help
	KeysTTL time.Duration
	// TopPosts is how many ranked posts are quoted under an analysis
	TopPosts int
}

// Handler turns commands into replies. Transport-agnostic.
type Handler struct {
	analyzer Analyzer
	store    CredentialStore
	locker   redisAdapter.Locker
	renderer templates.Renderer
	cfg      HandlerConfig
}

// NewHandler creates command handler. store may be nil when Redis is disabled.
func NewHandler(analyzer Analyzer, store CredentialStore, locker redisAdapter.Locker, cfg HandlerConfig) (*Handler, error) {
	renderer, err := templates.NewManagerWithValidation(templateFS, []string{
		"welcome.tmpl",
		"help.tmpl",
		"analysis.tmpl",
		"usage.tmpl",
		"error_validation",
		"error_no_results",
		"error_collaborator",
		"keys_saved",
	}, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to load telegram templates: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.TopPosts <= 0 {
		cfg.TopPosts = defaultTopPosts
	}
	if locker == nil {
		locker = redisAdapter.NewLocalLocker()
	}

	return &Handler{
		analyzer: analyzer,
		store:    store,
		locker:   locker,
		renderer: renderer,
		cfg:      cfg,
	}, nil
}

// Handle processes one command for chatID; args is the raw text after the command
func (h *Handler) Handle(ctx context.Context, chatID int64, command, args string) Reply {
	logger.Info("received telegram command",
		zap.String("command", command),
		zap.Int64("chat_id", chatID),
	)

	fields := strings.Fields(args)

	switch command {
	case "start":
		return h.render("welcome.tmpl", nil)
	case "help":
		return h.render("help.tmpl", map[string]any{"KeysTTL": h.keysTTL()})
	case "analyze", "a":
		return h.handleAnalyze(ctx, chatID, fields)
	case "usage":
		return h.handleUsage(ctx, chatID)
	case "keys":
		reply := h.handleKeys(ctx, chatID, fields)
		reply.DeleteCommand = len(fields) > 0
		return reply
	case "forget":
		return h.handleForget(ctx, chatID)
	default:
		return Reply{Text: fmt.Sprintf("❓ Unknown command: /%s\nUse /help to see available commands", command)}
	}
}

func (h *Handler) handleAnalyze(ctx context.Context, chatID int64, args []string) Reply {
	if len(args) < 2 {
		return h.render("error_usage_analyze", nil)
	}

	form := parseAnalyzeArgs(args)
	creds, err := h.credentials(ctx, chatID)
	if err != nil {
		return h.renderError(err)
	}
	form.XBearerToken = creds.XBearerToken
	form.OpenAIAPIKey = creds.OpenAIAPIKey

	req, err := analysis.ParseRequest(form)
	if err != nil {
		return h.renderError(err)
	}

	lock := h.locker.ForChat(chatID)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return h.renderError(err)
	}
	if !acquired {
		return h.render("error_busy", nil)
	}
	defer lock.Release(context.WithoutCancel(ctx))

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	res, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		return h.renderError(err)
	}

	return h.render("analysis.tmpl", h.analysisView(req.Token, res))
}

func (h *Handler) handleUsage(ctx context.Context, chatID int64) Reply {
	creds, err := h.credentials(ctx, chatID)
	if err != nil {
		return h.renderError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	report, err := h.analyzer.Usage(ctx, creds)
	if err != nil {
		return h.renderError(err)
	}

	return h.render("usage.tmpl", report)
}

func (h *Handler) handleKeys(ctx context.Context, chatID int64, args []string) Reply {
	if h.store == nil {
		return h.render("error_keys_unavailable", nil)
	}

	creds, ok := parseKeysArgs(args)
	if !ok {
		return h.render("error_usage_keys", nil)
	}

	if err := h.store.Save(ctx, chatID, creds); err != nil {
		return h.renderError(err)
	}

	return h.render("keys_saved", map[string]any{
		"TTL":    h.keysTTL(),
		"X":      creds.XBearerToken != "",
		"OpenAI": creds.OpenAIAPIKey != "",
	})
}

func (h *Handler) handleForget(ctx context.Context, chatID int64) Reply {
	if h.store == nil {
		return h.render("error_keys_unavailable", nil)
	}

	if err := h.store.Forget(ctx, chatID); err != nil {
		return h.renderError(err)
	}

	return h.render("keys_forgotten", nil)
}

// credentials returns stored keys for chatID, or none when storage is disabled
func (h *Handler) credentials(ctx context.Context, chatID int64) (models.Credentials, error) {
	if h.store == nil {
		return models.Credentials{}, nil
	}
	creds, _, err := h.store.Load(ctx, chatID)
	return creds, err
}

func (h *Handler) keysTTL() string {
	if h.store == nil || h.cfg.KeysTTL <= 0 {
		return ""
	}
	return h.cfg.KeysTTL.String()
}

type postView struct {
	Author     string
	Text       string
	Engagement int
	Verified   bool
}

func (h *Handler) analysisView(token string, res *analysis.Result) map[string]any {
	n := min(h.cfg.TopPosts, len(res.TopPosts))
	posts := make([]postView, n)
	for i, p := range res.TopPosts[:n] {
		posts[i] = postView{
			Author:     p.AuthorUsername,
			Text:       preview(p.Text),
			Engagement: p.EngagementScore,
			Verified:   p.AuthorVerified != nil && *p.AuthorVerified,
		}
	}

	return map[string]any{
		"Token":    token,
		"Analysis": res.Analysis,
		"TopPosts": posts,
		"Usage":    res.Usage,
	}
}

// renderError maps the analysis error taxonomy onto chat replies
func (h *Handler) renderError(err error) Reply {
	var verr *analysis.ValidationError
	var cerr *analysis.CollaboratorError

	switch {
	case errors.As(err, &verr):
		return h.render("error_validation", verr.Error())
	case errors.Is(err, analysis.ErrNoResults):
		return h.render("error_no_results", analysis.NoResultsMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return h.render("error_timeout", nil)
	case errors.As(err, &cerr):
		return h.render("error_collaborator", cerr.Error())
	default:
		logger.Error("command handler error", zap.Error(err))
		return h.render("error_internal", nil)
	}
}

func (h *Handler) render(name string, data any) Reply {
	text, err := h.renderer.ExecuteTemplate(name, data)
	if err != nil {
		logger.Error("failed to render telegram template", zap.String("template", name), zap.Error(err))
		return Reply{Text: "❌ Something went wrong. Try again."}
	}
	return Reply{Text: strings.TrimSpace(text)}
}

// parseAnalyzeArgs reads "<TOKEN> <BUY|SELL> [official] [en] [@handle]"
func parseAnalyzeArgs(args []string) analysis.Form {
	form := analysis.Form{
		Token:  args[0],
		Action: args[1],
	}

	for _, arg := range args[2:] {
		switch a := strings.ToLower(arg); {
		case a == "official":
			form.OfficialOnly = true
		case a == "en" || a == "english":
			form.EnglishOnly = true
		case strings.HasPrefix(arg, "@"):
			form.XHandle = arg
		}
	}

	return form
}

// parseKeysArgs reads "x=<token> openai=<key>"; either may be omitted
func parseKeysArgs(args []string) (models.Credentials, bool) {
	var creds models.Credentials
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "x":
			creds.XBearerToken = value
		case "openai":
			creds.OpenAIAPIKey = value
		}
	}
	return creds, !creds.IsEmpty()
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxPostPreview {
		return text
	}
	return string([]rune(text)[:maxPostPreview-1]) + "…"
}
