package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type sentMessage struct {
	ChatID int64
	Text   string
	At     time.Time
}

type mockSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failOn   map[int]bool // zero-based call index
}

func (m *mockSender) Deliver(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.messages)
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text, At: time.Now()})
	if m.failOn[call] {
		return errors.New("too many requests")
	}
	return nil
}

func (m *mockSender) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func records(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("record-%02d", i)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "empty", n: 0, size: 10, sizes: nil},
		{name: "single partial", n: 3, size: 10, sizes: []int{3}},
		{name: "exact multiple", n: 20, size: 10, sizes: []int{10, 10}},
		{name: "remainder", n: 23, size: 10, sizes: []int{10, 10, 3}},
		{name: "size one", n: 3, size: 1, sizes: []int{1, 1, 1}},
		{name: "invalid size uses default", n: 12, size: 0, sizes: []int{10, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes []int
			for _, b := range Batches(records(tt.n), tt.size) {
				sizes = append(sizes, len(b))
			}
			if diff := cmp.Diff(tt.sizes, sizes); diff != "" {
				t.Errorf("batch sizes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeliverBatchesInOrderWithPacing(t *testing.T) {
	const pace = 40 * time.Millisecond
	sender := &mockSender{}
	b := NewBatcher(sender, Options{BatchSize: 10, Pace: pace}, discardLogger())

	in := records(23)
	rep := b.Deliver(context.Background(), 100, in)

	if diff := cmp.Diff(Report{Batches: 3}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}

	msgs := sender.getMessages()
	if diff := cmp.Diff(3, len(msgs)); diff != "" {
		t.Fatalf("send count (-want +got):\n%s", diff)
	}

	var got []string
	for i, m := range msgs {
		if m.ChatID != 100 {
			t.Errorf("message %d chat id = %d, want 100", i, m.ChatID)
		}
		got = append(got, strings.Split(m.Text, "\n\n")...)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("records out of order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{10, 10, 3}, []int{
		len(strings.Split(msgs[0].Text, "\n\n")),
		len(strings.Split(msgs[1].Text, "\n\n")),
		len(strings.Split(msgs[2].Text, "\n\n")),
	}); diff != "" {
		t.Errorf("batch sizes (-want +got):\n%s", diff)
	}

	// Allow some slack for limiter rounding.
	for i := 1; i < len(msgs); i++ {
		if gap := msgs[i].At.Sub(msgs[i-1].At); gap < pace*3/4 {
			t.Errorf("gap between send %d and %d = %v, want >= %v", i, i+1, gap, pace)
		}
	}
}

func TestDeliverFailureBacksOffAndContinues(t *testing.T) {
	const backoff = 60 * time.Millisecond
	sender := &mockSender{failOn: map[int]bool{0: true}}
	b := NewBatcher(sender, Options{BatchSize: 2, Backoff: backoff}, discardLogger())

	rep := b.Deliver(context.Background(), 100, records(5))

	if diff := cmp.Diff(Report{Batches: 3, Failed: 1}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	msgs := sender.getMessages()
	if diff := cmp.Diff(3, len(msgs)); diff != "" {
		t.Fatalf("failed batch must not be retried (-want +got):\n%s", diff)
	}
	if gap := msgs[1].At.Sub(msgs[0].At); gap < backoff*3/4 {
		t.Errorf("gap after failure = %v, want >= %v", gap, backoff)
	}
	if diff := cmp.Diff("record-02\n\nrecord-03", msgs[1].Text); diff != "" {
		t.Errorf("second batch (-want +got):\n%s", diff)
	}
}

func TestDeliverAllFailing(t *testing.T) {
	sender := &mockSender{failOn: map[int]bool{0: true, 1: true, 2: true}}
	b := NewBatcher(sender, Options{BatchSize: 1}, discardLogger())

	rep := b.Deliver(context.Background(), 100, records(3))
	if diff := cmp.Diff(Report{Batches: 3, Failed: 3}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
}

func TestDeliverEmpty(t *testing.T) {
	sender := &mockSender{}
	b := NewBatcher(sender, Options{}, discardLogger())

	rep := b.Deliver(context.Background(), 100, nil)
	if diff := cmp.Diff(Report{}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	if len(sender.getMessages()) != 0 {
		t.Error("expected no sends for empty input")
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	sender := &mockSender{}
	b := NewBatcher(sender, Options{BatchSize: 1, Pace: time.Hour}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan Report)
	go func() { done <- b.Deliver(ctx, 100, records(3)) }()

	select {
	case rep := <-done:
		if diff := cmp.Diff(Report{Batches: 1}, rep); diff != "" {
			t.Errorf("report (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not return after cancellation")
	}
}
