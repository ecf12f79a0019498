package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
	"github.com/selivandex/sentiment-gate/pkg/metrics"
	"github.com/selivandex/sentiment-gate/pkg/models"
)

const (
	DefaultBaseURL = "https://api.x.com"

	searchPath = "/2/tweets/search/recent"
	usagePath  = "/2/usage/tweets"

	maxResultsLimit = 100

	tweetFields = "created_at,lang,public_metrics,author_id"
	userFields  = "username,verified,public_metrics"

	defaultRetryDelay = time.Second
	maxRetries        = 1
)

// ErrMissingToken is returned when no bearer token is available
var ErrMissingToken = errors.New("X bearer token is not configured")

// ClientConfig configures the X API client
type ClientConfig struct {
	HTTPClient  *http.Client
	BearerToken string
	BaseURL     string
	Timeout     time.Duration
	// RetryDelay is the first backoff after a 429; doubles per retry
	RetryDelay time.Duration
}

// Client talks to the X API v2 recent search and usage endpoints
type Client struct {
	http     *http.Client
	executor failsafe.Executor[*http.Response]
	baseURL  string
	token    string
}

// NewClient creates new X API client
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BearerToken) == "" {
		return nil, ErrMissingToken
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Client{
		http:     httpClient,
		executor: failsafe.With(newRateLimitRetry(delay)),
		baseURL:  baseURL,
		token:    strings.TrimSpace(cfg.BearerToken),
	}, nil
}

// newRateLimitRetry retries only HTTP 429, returning the last response when exhausted
//
//nolint:bodyclose // generic type parameter, not a live response
func newRateLimitRetry(delay time.Duration) retrypolicy.RetryPolicy[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			return err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(delay, delay*2).
		WithMaxRetries(maxRetries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			logger.Warn("X API rate limited, retrying",
				zap.Int("attempt", e.Attempts()),
			)
		}).
		Build()
}

// SearchRecent returns up to maxResults (capped at 100) posts matching query
func (c *Client) SearchRecent(ctx context.Context, query string, maxResults int) ([]models.RawPost, error) {
	if maxResults > maxResultsLimit {
		maxResults = maxResultsLimit
	}
	if maxResults < 10 {
		// recent search rejects max_results below 10
		maxResults = 10
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", tweetFields)
	params.Set("expansions", "author_id")
	params.Set("user.fields", userFields)

	var result searchResponse
	if err := c.get(ctx, "search", searchPath, params, &result); err != nil {
		return nil, err
	}

	posts := result.toRawPosts()

	logger.Debug("fetched recent posts",
		zap.Int("count", len(posts)),
		zap.String("query", query),
	)

	return posts, nil
}

// Usage returns post consumption for the current billing cycle
func (c *Client) Usage(ctx context.Context) (*models.UsageReport, error) {
	params := url.Values{}
	params.Set("days", "1")

	var result usageResponse
	if err := c.get(ctx, "usage", usagePath, params, &result); err != nil {
		return nil, err
	}

	return result.toReport(), nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	start := time.Now()
	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		return c.do(ctx, reqURL)
	})
	if err != nil {
		metrics.ObserveNetworkRequest("x_api", operation, start, 0, err)
		return fmt.Errorf("X API request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.ObserveNetworkRequest("x_api", operation, start, resp.StatusCode, nil)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read X API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(body)
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return newAPIError(resp.StatusCode, text)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode X API response: %w", err)
	}

	return nil
}

// do issues one attempt. A 429 body is buffered so the discarded attempt does not leak.
func (c *Client) do(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	return resp, nil
}
