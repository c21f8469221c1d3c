// Package poller runs one poll cycle for a chat: fetch every subscribed
// feed, keep the entries the chat has not seen, and hand them to the notifier.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"upwork_rss_bot/internal/dedup"
	"upwork_rss_bot/internal/extract"
	"upwork_rss_bot/internal/fetcher"
	"upwork_rss_bot/internal/model"
	"upwork_rss_bot/internal/notify"
	"upwork_rss_bot/internal/storage"
)

// ErrStopped is the cancellation cause for a poll context whose chat was
// stopped on request. A cycle cancelled with this cause still delivers what
// it discovered; any other cancellation also cuts delivery short.
var ErrStopped = errors.New("periodic check stopped")

// Notifier delivers formatted records to a chat.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, records []string) notify.Report
}

// Report summarizes one cycle.
type Report struct {
	Subscriptions int
	FetchFailures int
	Novel         int
	// Baseline is set when this was the chat's first cycle and nothing was sent.
	Baseline bool
	Delivery notify.Report
}

// Poller checks the feeds of one chat per call.
type Poller struct {
	store    storage.Storage
	fetcher  *fetcher.Fetcher
	notifier Notifier
	log      *slog.Logger
}

// New creates a Poller.
func New(store storage.Storage, f *fetcher.Fetcher, notifier Notifier, log *slog.Logger) *Poller {
	return &Poller{
		store:    store,
		fetcher:  f,
		notifier: notifier,
		log:      log,
	}
}

// Poll runs one cycle for chatID.
//
// The seen-set is saved before anything is delivered. On the chat's first
// cycle the discovered entries only seed the seen-set; the first cycle in
// which every feed failed to fetch does not count. A storage error aborts
// the cycle without saving, so the same entries are found again next time.
// Once discovery is done the seen-set is saved even if ctx is cancelled.
func (p *Poller) Poll(ctx context.Context, chatID int64) (Report, error) {
	var rep Report

	baselineDone, err := p.store.BaselineDone(ctx, chatID)
	if err != nil {
		return rep, fmt.Errorf("check baseline: %w", err)
	}

	subs, err := p.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		return rep, fmt.Errorf("list subscriptions: %w", err)
	}
	rep.Subscriptions = len(subs)

	seen, err := dedup.Load(ctx, p.store, chatID)
	if err != nil {
		return rep, err
	}

	var records []string
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		entries, err := p.entries(ctx, sub)
		if err != nil {
			rep.FetchFailures++
			p.log.Error("fetch feed", "chat_id", chatID, "name", sub.Name, "url", sub.URL, "error", err)
			continue
		}

		for _, e := range entries {
			if !seen.MarkSeen(e.Link) {
				continue
			}
			records = append(records, notify.FormatRecord(newRecord(e)))
		}
	}
	rep.Novel = len(records)

	pctx := context.WithoutCancel(ctx)

	if err := seen.Save(pctx, p.store); err != nil {
		return rep, err
	}

	if !baselineDone {
		if rep.Subscriptions > 0 && rep.FetchFailures == rep.Subscriptions {
			p.log.Warn("baseline postponed, no feed fetched", "chat_id", chatID)
			return rep, nil
		}
		if err := p.store.MarkBaselineDone(pctx, chatID); err != nil {
			return rep, fmt.Errorf("mark baseline: %w", err)
		}
		rep.Baseline = true
		p.log.Info("baseline recorded", "chat_id", chatID, "entries", rep.Novel)
		return rep, nil
	}

	if len(records) > 0 {
		dctx, cancel := deliveryContext(ctx)
		defer cancel()

		rep.Delivery = p.notifier.Deliver(dctx, chatID, records)
		p.log.Info("sent notifications", "chat_id", chatID, "count", rep.Novel,
			"batches", rep.Delivery.Batches, "failed_batches", rep.Delivery.Failed)
	}
	return rep, nil
}

// deliveryContext outlives ctx when ctx is cancelled with ErrStopped and is
// cancelled along with it otherwise.
func deliveryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		if !errors.Is(context.Cause(ctx), ErrStopped) {
			cancel()
		}
	})
	return dctx, func() {
		stop()
		cancel()
	}
}

func (p *Poller) entries(ctx context.Context, sub model.Subscription) ([]model.Entry, error) {
	feed, err := p.fetcher.Fetch(ctx, sub.URL)
	if err != nil {
		return nil, err
	}
	return fetcher.Entries(feed), nil
}

func newRecord(e model.Entry) model.Record {
	f := extract.Fields(e.Summary)
	return model.Record{
		Title:   e.Title,
		Link:    e.Link,
		Skills:  f.Skills,
		Country: f.Country,
		Budget:  f.Budget,
	}
}
