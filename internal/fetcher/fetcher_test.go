package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"

	"upwork_rss_bot/internal/model"
)

type response struct {
	body       string
	statusCode int
	err        error
}

// mockTransport replays responses in order and repeats the last one.
type mockTransport struct {
	mu        sync.Mutex
	responses []response
	calls     int
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.responses[min(m.calls, len(m.responses)-1)]
	m.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/upwork.xml")

	tests := []struct {
		name      string
		responses []response
		wantLink  string
		wantItems int
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "successful fetch",
			responses: []response{{body: xml, statusCode: 200}},
			wantLink:  "https://www.upwork.com/ab/feed/jobs/rss?q=golang",
			wantItems: 3,
			wantCalls: 1,
		},
		{
			name:      "not found is not retried",
			responses: []response{{body: "not found", statusCode: 404}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "invalid xml is not retried",
			responses: []response{{body: "not xml at all", statusCode: 200}},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "network error retried until attempts run out",
			responses: []response{{err: io.ErrUnexpectedEOF}},
			wantCalls: 3,
			wantErr:   true,
		},
		{
			name: "server error then success",
			responses: []response{
				{body: "oops", statusCode: 502},
				{body: xml, statusCode: 200},
			},
			wantLink:  "https://www.upwork.com/ab/feed/jobs/rss?q=golang",
			wantItems: 3,
			wantCalls: 2,
		},
		{
			name: "rate limited then success",
			responses: []response{
				{body: "slow down", statusCode: 429},
				{body: xml, statusCode: 200},
			},
			wantLink:  "https://www.upwork.com/ab/feed/jobs/rss?q=golang",
			wantItems: 3,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &mockTransport{responses: tt.responses}
			f := New(transport)
			f.SetRetry(3, 0)

			feed, err := f.Fetch(context.Background(), "https://www.upwork.com/ab/feed/jobs/rss?q=golang")
			if diff := cmp.Diff(tt.wantCalls, transport.calls); diff != "" {
				t.Errorf("request count (-want +got):\n%s", diff)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantLink, feed.Link); diff != "" {
				t.Errorf("link mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantItems, len(feed.Items)); diff != "" {
				t.Errorf("items count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(&mockTransport{responses: []response{{err: context.Canceled}}})
	if _, err := f.Fetch(ctx, "https://www.upwork.com/feed"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		feed    *gofeed.Feed
		wantErr error
	}{
		{name: "matching domain", feed: &gofeed.Feed{Link: "https://www.upwork.com/ab/feed/jobs/rss"}},
		{name: "foreign domain", feed: &gofeed.Feed{Link: "https://example.com/rss"}, wantErr: ErrForeignFeed},
		{name: "empty link", feed: &gofeed.Feed{}, wantErr: ErrForeignFeed},
		{name: "nil feed", feed: nil, wantErr: ErrForeignFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.feed, "upwork.com")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEntries(t *testing.T) {
	feed := &gofeed.Feed{
		Items: []*gofeed.Item{
			{Title: "One", Link: "https://www.upwork.com/jobs/1", Description: "desc one"},
			{Title: "No link", Description: "dropped"},
			{Title: "Content only", Link: "https://www.upwork.com/jobs/2", Content: "<b>Budget</b>: $5"},
			nil,
		},
	}

	want := []model.Entry{
		{Link: "https://www.upwork.com/jobs/1", Title: "One", Summary: "desc one"},
		{Link: "https://www.upwork.com/jobs/2", Title: "Content only", Summary: "<b>Budget</b>: $5"},
	}
	if diff := cmp.Diff(want, Entries(feed)); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
}
