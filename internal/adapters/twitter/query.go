package twitter

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxTickerLen = 12
	minTickerLen = 2

	exclusions = "-is:retweet -is:reply"

	cryptoContextTerms = `(crypto OR token OR cryptocurrency OR trading OR price OR market OR blockchain OR defi OR coin OR financial OR altcoin OR web3 OR "price action" OR "market cap")`
)

var tickerPrefix = regexp.MustCompile(`^[$#]\s*`)

// QueryOptions shapes the recent-search query
type QueryOptions struct {
	// Lang restricts results to one BCP 47 language, e.g. "en"
	Lang string
	// FromHandle overrides the curated official account when OfficialOnly is set
	FromHandle string
	// OfficialOnly searches the official account, or verified authors when none is known
	OfficialOnly bool
	// AnyContext drops the finance-terms clause that is required by default
	AnyContext bool
	// Directory supplies curated project names and handles; nil means built-in defaults
	Directory *Directory
}

// StripTicker trims, strips one leading $ or # and upper-cases, without length limits
func StripTicker(input string) string {
	return strings.ToUpper(tickerPrefix.ReplaceAllString(strings.TrimSpace(input), ""))
}

// NormalizeTicker is StripTicker cut to 12 runes
func NormalizeTicker(input string) string {
	t := StripTicker(input)
	if r := []rune(t); len(r) > maxTickerLen {
		t = string(r[:maxTickerLen])
	}
	return t
}

// BuildSearchQuery builds an X API v2 recent-search query for token.
// Returns "" when the normalized ticker is shorter than 2 characters.
func BuildSearchQuery(token string, opts QueryOptions) string {
	ticker := NormalizeTicker(token)
	if len([]rune(ticker)) < minTickerLen {
		return ""
	}

	dir := opts.Directory
	if dir == nil {
		dir = DefaultDirectory()
	}

	parts := []string{
		fmt.Sprintf(`"$%s"`, ticker),
		fmt.Sprintf(`"%s"`, ticker),
		"#" + ticker,
	}
	if name, ok := dir.ProjectName(ticker); ok {
		parts = append(parts, fmt.Sprintf(`"%s"`, name))
	}
	keywords := "(" + strings.Join(parts, " OR ") + ")"

	var langSuffix string
	if lang := strings.TrimSpace(opts.Lang); lang != "" {
		langSuffix = " lang:" + lang
	}

	var context string
	if !opts.AnyContext {
		context = " " + cryptoContextTerms
	}

	if opts.OfficialOnly {
		handle := strings.TrimPrefix(strings.TrimSpace(opts.FromHandle), "@")
		if handle == "" {
			handle, _ = dir.OfficialHandle(ticker)
		}
		if handle != "" {
			return fmt.Sprintf("from:%s %s%s %s%s", handle, keywords, context, exclusions, langSuffix)
		}
		return fmt.Sprintf("%s%s %s is:verified%s", keywords, context, exclusions, langSuffix)
	}

	return fmt.Sprintf("%s%s %s%s", keywords, context, exclusions, langSuffix)
}
