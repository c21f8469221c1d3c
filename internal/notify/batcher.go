// Package notify delivers formatted records to a chat in paced batches.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for Options.
const (
	DefaultBatchSize = 10
	DefaultPace      = time.Second
	DefaultBackoff   = 5 * time.Second
)

// batchSeparator joins records inside one message.
const batchSeparator = "\n\n"

// Sender delivers one message to a chat.
type Sender interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// Options configures a Batcher. A zero BatchSize takes the default; a zero
// Pace or Backoff disables that wait.
type Options struct {
	BatchSize int
	// Pace is the minimum gap between two consecutive sends.
	Pace time.Duration
	// Backoff is the extra wait after a failed send.
	Backoff time.Duration
}

// Report summarizes one Deliver call.
type Report struct {
	Batches int
	Failed  int
}

// Batcher splits records into contiguous batches and sends them one by one.
// A failed batch is logged and dropped; the following batches are still sent.
type Batcher struct {
	sender  Sender
	log     *slog.Logger
	size    int
	pace    time.Duration
	backoff time.Duration
}

// NewBatcher creates a Batcher.
func NewBatcher(sender Sender, opts Options, log *slog.Logger) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Batcher{
		sender:  sender,
		log:     log,
		size:    opts.BatchSize,
		pace:    max(opts.Pace, 0),
		backoff: max(opts.Backoff, 0),
	}
}

// Batches partitions records into contiguous groups of at most size.
func Batches(records []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for i := 0; i < len(records); i += size {
		out = append(out, records[i:min(i+size, len(records))])
	}
	return out
}

// Deliver sends records to chatID in order. It returns early only when ctx
// is cancelled while waiting between batches.
func (b *Batcher) Deliver(ctx context.Context, chatID int64, records []string) Report {
	var rep Report
	if len(records) == 0 {
		return rep
	}

	limit := rate.Inf
	if b.pace > 0 {
		limit = rate.Every(b.pace)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, batch := range Batches(records, b.size) {
		if err := limiter.Wait(ctx); err != nil {
			b.log.Warn("delivery interrupted", "chat_id", chatID, "sent_batches", rep.Batches, "error", err)
			return rep
		}

		rep.Batches++
		err := b.sender.Deliver(ctx, chatID, strings.Join(batch, batchSeparator))
		if err == nil {
			continue
		}

		rep.Failed++
		b.log.Error("send batch", "chat_id", chatID, "batch", i, "size", len(batch), "error", err)
		if !sleep(ctx, b.backoff) {
			return rep
		}
	}
	return rep
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
