package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"upwork_rss_bot/internal/fetcher"
	"upwork_rss_bot/internal/model"
	"upwork_rss_bot/internal/scheduler"
	"upwork_rss_bot/internal/storage"
)

var errInvalidURL = errors.New("invalid url")

func (b *Bot) handleStart(chatID int64) {
	b.replyWithMenu(chatID, startText)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, helpText)
}

// handleText answers plain text according to the chat's pending prompt.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	p := b.prompts.get(chatID)

	switch p.step {
	case stepURL:
		b.handleAdd(ctx, chatID, AddCommand{URL: text})
	case stepName:
		b.addSubscription(ctx, chatID, p.url, text)
	case stepDelete:
		b.deleteByName(ctx, chatID, text)
	default:
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			b.handleAdd(ctx, chatID, AddCommand{URL: text})
			return
		}
		b.reply(chatID, "Send an Upwork RSS feed URL or use /help for a list of commands.")
	}
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, c AddCommand) {
	if c.URL == "" {
		b.prompts.set(chatID, prompt{step: stepURL})
		b.reply(chatID, "Enter the RSS feed URL from Upwork:")
		return
	}

	if err := b.checkFeed(ctx, c.URL); err != nil {
		b.prompts.set(chatID, prompt{step: stepURL})
		switch {
		case errors.Is(err, errInvalidURL):
			b.reply(chatID, "Invalid URL. Please enter the RSS feed URL from Upwork:")
		case errors.Is(err, fetcher.ErrForeignFeed):
			b.reply(chatID, "The provided URL is not a valid Upwork RSS feed. Please enter a correct URL.")
		default:
			b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v\nPlease enter a correct URL.", err))
		}
		return
	}

	if c.Name == "" {
		b.prompts.set(chatID, prompt{step: stepName, url: c.URL})
		b.reply(chatID, fmt.Sprintf("URL '%s' is a valid Upwork RSS feed.\nPlease enter a name for this RSS feed:", c.URL))
		return
	}

	b.addSubscription(ctx, chatID, c.URL, c.Name)
}

// checkFeed verifies that rawURL is an http(s) URL serving a feed of the
// configured site.
func (b *Bot) checkFeed(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errInvalidURL
	}

	feed, err := b.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return fetcher.Validate(feed, b.cfg.FeedDomain)
}

func (b *Bot) addSubscription(ctx context.Context, chatID int64, feedURL, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		b.prompts.set(chatID, prompt{step: stepName, url: feedURL})
		b.reply(chatID, "The name cannot be empty. Please enter a name for this RSS feed:")
		return
	}
	b.prompts.clear(chatID)

	sub := &model.Subscription{ChatID: chatID, Name: name, URL: feedURL}
	err := b.store.AddSubscription(ctx, sub)
	switch {
	case errors.Is(err, storage.ErrDuplicateURL):
		b.replyWithMenu(chatID, fmt.Sprintf("RSS feed with URL '%s' is already added.", feedURL))
	case err != nil:
		b.log.Error("add subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to save feed: %v", err))
	default:
		b.replyWithMenu(chatID, fmt.Sprintf("RSS feed '%s' has been successfully added.", name))
	}
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, c DeleteCommand) {
	if c.Name != "" {
		b.deleteByName(ctx, chatID, c.Name)
		return
	}

	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(subs) == 0 {
		b.reply(chatID, "No saved RSS feeds to delete.")
		return
	}

	b.prompts.set(chatID, prompt{step: stepDelete})
	b.sendDeleteChoice(chatID, subs)
}

func (b *Bot) deleteByName(ctx context.Context, chatID int64, name string) {
	b.prompts.clear(chatID)

	n, err := b.store.DeleteSubscriptionsByName(ctx, chatID, name)
	switch {
	case err != nil:
		b.log.Error("delete subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	case n == 0:
		b.replyWithMenu(chatID, fmt.Sprintf("No RSS feed named '%s'.", name))
	case n == 1:
		b.replyWithMenu(chatID, fmt.Sprintf("RSS feed '%s' has been successfully deleted.", name))
	default:
		b.replyWithMenu(chatID, fmt.Sprintf("%d RSS feeds named '%s' have been deleted.", n, name))
	}
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSubscriptionList(subs))
}

func (b *Bot) handleRun(ctx context.Context, chatID int64) {
	err := b.sched.Start(ctx, chatID)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		b.reply(chatID, "The checking process is already running.")
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	default:
		b.reply(chatID, "Starting periodic RSS feed check...")
	}
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	err := b.sched.Stop(ctx, chatID)
	switch {
	case errors.Is(err, scheduler.ErrNotRunning):
		b.reply(chatID, "The checking process is not running.")
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
	default:
		b.reply(chatID, "Periodic check has been stopped.")
	}
}
