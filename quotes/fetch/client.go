// Package fetch implements the HTTP fetcher shared by every vendor adapter.
//
// It knows nothing about vendors: it issues GETs with a rotating browser
// User-Agent and a random Referer, follows redirects, bounds the connection
// pool, and retries with linear back-off. On final failure it raises a typed
// common.NetworkError.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quotefetch/quotes/quotes/common"
)

// uaPool is the pool of desktop browser User-Agent strings, one chosen uniformly
// at random per request.
var uaPool = []string{
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/30.0.1599.101",
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/38.0.2125.122",
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/39.0.2171.71",
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/39.0.2171.95",
	"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.1 (KHTML, like Gecko) Chrome/21.0.1180.71",
	"Mozilla/4.0 (compatible; MSIE 6.0; Windows NT 5.1; SV1; QQDownload 732; .NET4.0C; .NET4.0E)",
	"Mozilla/5.0 (Windows NT 5.1; U; en; rv:1.8.1) Gecko/20061208 Firefox/2.0.0 Opera 9.50",
	"Mozilla/5.0 (Windows NT 6.1; WOW64; rv:34.0) Gecko/20100101 Firefox/34.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_3) AppleWebKit/534.55.3 (KHTML, like Gecko) Version/5.1.5 Safari/534.55.3",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/521.61",
}

// Client is the process-wide HTTP fetcher. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	debug      bool
}

// New constructs a Client. Defaults: 10s timeout, 3 attempts, 1s first delay,
// 10 pooled connections per host.
func New(options ...func(*Client)) *Client {
	c := &Client{
		retries:    3,
		retryDelay: 1 * time.Second,
	}
	for _, option := range options {
		option(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(10*time.Second, 10)
	}
	return c
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) func(*Client) {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = newHTTPClient(timeout, 10)
		} else {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithPoolSize bounds the idle connection pool.
func WithPoolSize(size int) func(*Client) {
	return func(c *Client) {
		timeout := 10 * time.Second
		if c.httpClient != nil {
			timeout = c.httpClient.Timeout
		}
		c.httpClient = newHTTPClient(timeout, size)
	}
}

// WithRetries sets the attempt count and the first back-off delay. Back-off is
// linear: delay × attempt.
func WithRetries(attempts int, delay time.Duration) func(*Client) {
	return func(c *Client) {
		if attempts > 0 {
			c.retries = attempts
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithDebug enables request logging.
func WithDebug(debug bool) func(*Client) {
	return func(c *Client) { c.debug = debug }
}

func newHTTPClient(timeout time.Duration, poolSize int) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        poolSize * 2,
		MaxIdleConnsPerHost: poolSize,
	}
	// Redirects are followed by default; only the transport needs configuring.
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Get issues a GET for url and returns the full body. It retries up to the
// configured attempt count with linear back-off, and fails with a
// common.NetworkError once attempts are exhausted. The response body is always
// fully read and closed so pooled TLS connections are released even when a
// caller's parser would abandon the stream early.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		body, err := c.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, common.NetworkError{URL: url, Attempts: attempt, Err: lastErr}
		}
		if c.debug {
			log.Warn().Str("url", url).Int("attempt", attempt).Err(err).Msg("GET failed, retrying")
		}
		if attempt == c.retries {
			break
		}
		select {
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, common.NetworkError{URL: url, Attempts: attempt, Err: ctx.Err()}
		}
	}
	return nil, common.NetworkError{URL: url, Attempts: c.retries, Err: lastErr}
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", uaPool[rand.Intn(len(uaPool))])
	req.Header.Set("Referer", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %v", resp.StatusCode)
	}
	return body, nil
}
