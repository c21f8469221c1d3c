package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"upwork_rss_bot/internal/bot"
	"upwork_rss_bot/internal/config"
	"upwork_rss_bot/internal/notify"
	"upwork_rss_bot/internal/poller"
	"upwork_rss_bot/internal/scheduler"
	"upwork_rss_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()
	store.SetLimits(storage.Limits{
		MaxSubscriptions: cfg.MaxSubscriptions,
		SeenRetention:    cfg.SeenRetention,
	})

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	batcher := notify.NewBatcher(b, notify.Options{
		BatchSize: cfg.BatchSize,
		Pace:      cfg.SendPace,
		Backoff:   cfg.SendBackoff,
	}, log)
	p := poller.New(store, b.Fetcher(), batcher, log)

	sched := scheduler.New(p, store, log)
	sched.SetInterval(cfg.PollInterval)
	b.SetScheduler(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "poll_interval", cfg.PollInterval, "batch_size", cfg.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		b.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("bot stopped", "error", err)
		return
	}

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
