package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Fetch retrieves feedURL and decodes it. Transport and HTTP status failures
// are reported as *FeedUnavailableError, malformed documents as *FeedParseError.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Metadata, []Entry, error) {
	data, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, nil, &FeedUnavailableError{URL: feedURL, Err: err}
	}

	metadata, entries, err := f.parser.Run(data)
	if err != nil {
		return nil, nil, &FeedParseError{URL: feedURL, Err: err}
	}

	slog.Debug("Feed parsed", "url", feedURL, "title", metadata.Title, "entries", len(entries))
	return metadata, entries, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
