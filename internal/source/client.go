package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matsen/bibfix/internal/reference"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is how many times a transient failure is tried.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the base delay between attempts; attempt n waits n*DefaultBackoff.
	DefaultBackoff = 500 * time.Millisecond

	// UserAgent identifies bibfix to the metadata services.
	UserAgent = "bibfix/1.0 (+https://github.com/matsen/bibfix)"

	maxBodySize = 10 << 20
)

// Client is a rate-limited HTTP client shared by the source adapters.
type Client struct {
	source      reference.Source
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	mailto      string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit overrides the source's default request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithMailto sets a contact address. CrossRef routes such requests to its
// "polite" pool; the other sources see it in the User-Agent.
func WithMailto(email string) Option {
	return func(c *Client) {
		c.mailto = email
	}
}

// WithRetry sets the attempt count and base backoff for transient failures.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.maxAttempts = attempts
		c.backoff = backoff
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func newClient(src reference.Source, baseURL string, limit rate.Limit, opts []Option) *Client {
	c := &Client{
		source:      src,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(limit, 1),
		baseURL:     baseURL,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(zap.String("source", string(src)))
	return c
}

// get fetches baseURL+path with the given query parameters, retrying
// transient failures with linear backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		body, err := c.do(ctx, u)
		if err == nil {
			return body, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err

		// Don't retry if context is cancelled
		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < c.maxAttempts-1 {
			delay := time.Duration(attempt+1) * c.backoff
			c.logger.Warn("request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Duration("delay", delay),
				zap.String("url", u),
				zap.Error(err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, unavailable(c.source, ctx.Err())
			}
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			// The limiter refuses waits that would outlast the deadline.
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, unavailable(c.source, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, unavailable(c.source, fmt.Errorf("creating request: %w", err))
	}
	ua := UserAgent
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(c.source, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(c.source, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, unavailable(c.source, fmt.Errorf("reading response: %w", err))
	}
	return body, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(src reference.Source, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		Source:     src,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(msg)),
	}
}

// retryable reports whether a failed request may succeed if repeated.
// Client errors are final, except 429.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return IsUnavailable(err)
}
