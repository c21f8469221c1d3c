// Package fetcher handles RSS feed downloading, parsing, and validation.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mmcdole/gofeed"

	"upwork_rss_bot/internal/model"
)

// ErrForeignFeed is returned when a feed does not belong to the expected site.
var ErrForeignFeed = errors.New("feed link does not match the required domain")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client   HTTPClient
	log      *slog.Logger
	attempts uint
	delay    time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:   client,
		log:      slog.New(slog.DiscardHandler),
		attempts: 3,
		delay:    500 * time.Millisecond,
	}
}

// SetLogger sets the logger used to report retries.
func (f *Fetcher) SetLogger(log *slog.Logger) {
	f.log = log
}

// SetRetry overrides how often transient failures are retried.
// attempts counts the first try; 1 disables retrying.
func (f *Fetcher) SetRetry(attempts uint, delay time.Duration) {
	f.attempts = max(attempts, 1)
	f.delay = delay
}

// Fetch downloads and parses an RSS feed from the given URL. Network errors
// and 5xx responses are retried; other statuses and parse errors are not.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed
	err := retry.Do(
		func() error {
			var err error
			feed, err = f.fetchOnce(ctx, url)
			return err
		},
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warn("retrying feed fetch", "url", url, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "UpworkRSSBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

// Validate checks that the feed-level link contains domain.
func Validate(feed *gofeed.Feed, domain string) error {
	if feed == nil || !strings.Contains(feed.Link, domain) {
		return ErrForeignFeed
	}
	return nil
}

// Entries converts parsed feed items into entries. Items without a link are
// skipped since the link is their identity.
func Entries(feed *gofeed.Feed) []model.Entry {
	entries := make([]model.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		entries = append(entries, model.Entry{
			Link:    item.Link,
			Title:   item.Title,
			Summary: summary,
		})
	}
	return entries
}
