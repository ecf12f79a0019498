package analysis

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/selivandex/sentiment-gate/internal/adapters/twitter"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

const (
	DefaultMaxPosts = 50
	MaxMaxPosts     = 100

	minTokenLen = 2
	maxTokenLen = 12
)

var xUsername = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Form is the raw user input shared by the HTTP API, the bot and the CLI
type Form struct {
	IncludeUsage *bool  `json:"include_usage,omitempty"`
	Token        string `json:"token"`
	Action       string `json:"action"`
	XHandle      string `json:"x_handle,omitempty"`
	XBearerToken string `json:"x_bearer_token,omitempty"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	MaxPosts     int    `json:"max_posts,omitempty"`
	OfficialOnly bool   `json:"official_only"`
	EnglishOnly  bool   `json:"english_only"`
}

// Request is a validated analysis request
type Request struct {
	Credentials  models.Credentials
	Token        string
	Action       models.Action
	FromHandle   string
	Lang         string
	MaxPosts     int
	OfficialOnly bool
	// AnyContext drops the finance-terms clause from the search query
	AnyContext   bool
	IncludeUsage bool
}

// ParseRequest validates f and returns a Request, or a *ValidationError listing every bad field
func ParseRequest(f Form) (Request, error) {
	verr := &ValidationError{}

	token := twitter.NormalizeTicker(f.Token)
	switch n := utf8.RuneCountInString(twitter.StripTicker(f.Token)); {
	case n < minTokenLen || n > maxTokenLen:
		verr.add("token", "Token must be 2–12 characters")
	case !isTickerText(token):
		verr.add("token", "Token may only contain letters and digits")
	}

	action, ok := models.ParseRequestedAction(f.Action)
	if !ok {
		verr.add("action", "Action must be BUY or SELL")
	}

	handle := strings.TrimPrefix(strings.TrimSpace(f.XHandle), "@")
	if handle != "" && !xUsername.MatchString(handle) {
		verr.add("x_handle", "Handle must be a valid X username")
	}

	if len(verr.Fields) > 0 {
		return Request{}, verr
	}

	req := Request{
		Token:    token,
		Action:   action,
		MaxPosts: clampMaxPosts(f.MaxPosts),
		// a handle only narrows the search in official mode, so naming one asks for it
		OfficialOnly: f.OfficialOnly || handle != "",
		FromHandle:   handle,
		IncludeUsage: f.IncludeUsage == nil || *f.IncludeUsage,
		Credentials: models.Credentials{
			XBearerToken: strings.TrimSpace(f.XBearerToken),
			OpenAIAPIKey: strings.TrimSpace(f.OpenAIAPIKey),
		},
	}
	if f.EnglishOnly {
		req.Lang = "en"
	}

	return req, nil
}

func clampMaxPosts(n int) int {
	switch {
	case n == 0:
		return DefaultMaxPosts
	case n < 1:
		return 1
	case n > MaxMaxPosts:
		return MaxMaxPosts
	}
	return n
}

func isTickerText(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
