package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const DefaultMediaExtension = ".mp3"

// Landing pages larger than this are truncated before scanning.
const maxPageSize = 8 << 20

var ErrNotFound = errors.New("no media link found on page")

type PageError struct {
	URL string
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch page %s: %v", e.URL, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

type Resolver struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	pattern    *regexp.Regexp
}

func NewResolver(httpClient *http.Client, userAgent string, timeout time.Duration, extension string) *Resolver {
	if extension == "" {
		extension = DefaultMediaExtension
	}
	return &Resolver{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		pattern:    compileMediaPattern(extension),
	}
}

// Resolve fetches the landing page and returns the first media URL on it.
func (r *Resolver) Resolve(ctx context.Context, landingURL string) (string, error) {
	pageURL := NormalizeLandingURL(landingURL)

	body, err := r.fetchPage(ctx, pageURL)
	if err != nil {
		return "", &PageError{URL: pageURL, Err: err}
	}

	mediaURL, ok := findMediaURL(r.pattern, body)
	if !ok {
		return "", fmt.Errorf("%s: %w", pageURL, ErrNotFound)
	}

	slog.Debug("Found download link", "page", pageURL, "media_url", mediaURL)
	return mediaURL, nil
}

// NormalizeLandingURL drops a leading "www." from the host. Feed links point
// at the www mirror, which only redirects to the bare host.
func NormalizeLandingURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Host = strings.TrimPrefix(u.Host, "www.")
	return u.String()
}

var defaultMediaPattern = compileMediaPattern(DefaultMediaExtension)

// ExtractMediaURL returns the first http:// URL in body whose token ends with
// extension. Tokens stop at whitespace, quotes, angle brackets and commas; the
// extension must be followed by one of those, a query, a fragment or the end
// of the body.
func ExtractMediaURL(body, extension string) (string, bool) {
	pattern := defaultMediaPattern
	if extension != "" && extension != DefaultMediaExtension {
		pattern = compileMediaPattern(extension)
	}
	return findMediaURL(pattern, body)
}

func compileMediaPattern(extension string) *regexp.Regexp {
	return regexp.MustCompile(`(http://[^\s"'<>,]*?` + regexp.QuoteMeta(extension) + `)(?:[\s"'<>,;)?#]|$)`)
}

func findMediaURL(pattern *regexp.Regexp, body string) (string, bool) {
	match := pattern.FindStringSubmatch(body)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(data), nil
}
