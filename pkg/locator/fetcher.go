// Remote stylesheet retrieval implementation.
package locator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// FetcherConfig controls remote retrieval behavior.
type FetcherConfig struct {
	// Timeout bounds one fetch end to end. 0 means DefaultFetchTimeout.
	Timeout time.Duration

	// MaxBodyBytes bounds the response size. 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// MaxRedirects bounds the redirect chain. 0 means DefaultMaxRedirects.
	MaxRedirects int

	// UserAgent is sent with every request. Empty means DefaultUserAgent.
	UserAgent string
}

// Fetcher defaults sized for dev-server and CDN stylesheets.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 8 << 20
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "csstyped"
)

// DefaultFetcherConfig returns the default fetcher configuration.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      DefaultFetchTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    DefaultUserAgent,
	}
}

// Fetcher retrieves remote stylesheets over HTTP and HTTPS.
//
// Only those two schemes are allowed, on requests and on redirect targets.
// Missing resources (404, 410 and other definitive 4xx statuses) surface as
// ErrPathResolution; transport failures, timeouts, 429 and 5xx statuses
// surface as ErrNetwork so callers can tell retryable failures apart.
type Fetcher struct {
	client *http.Client
	config FetcherConfig
	logger *slog.Logger
}

// NewFetcher creates a fetcher. Zero config fields take defaults.
func NewFetcher(config FetcherConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = DefaultMaxRedirects
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	maxRedirects := config.MaxRedirects
	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errors.Newf("redirect to scheme %q blocked", req.URL.Scheme)
			}
			return nil
		},
	}

	return &Fetcher{
		client: client,
		config: config,
		logger: logger,
	}
}

// Fetch retrieves the body of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid URL %s", rawURL), ErrPathResolution)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Mark(errors.Newf("scheme %q not allowed for %s", parsed.Scheme, rawURL), ErrPathResolution)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewNetworkError(rawURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/css,*/*;q=0.1")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(rawURL, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, NewNetworkError(rawURL, err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, errors.Mark(
			errors.Newf("%s body exceeds %d bytes", rawURL, f.config.MaxBodyBytes),
			ErrNetwork)
	}

	f.logger.Debug("fetched remote stylesheet",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start))

	return body, nil
}

// classifyStatus maps a non-success HTTP status onto the error taxonomy.
func classifyStatus(rawURL string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.Mark(errors.Newf("%s returned status %d", rawURL, status), ErrNetwork)
	case status >= 400:
		// Definitive client errors mean the resource cannot be resolved
		return errors.Mark(errors.Newf("%s returned status %d", rawURL, status), ErrPathResolution)
	default:
		return errors.Mark(errors.Newf("%s returned unexpected status %d", rawURL, status), ErrNetwork)
	}
}
