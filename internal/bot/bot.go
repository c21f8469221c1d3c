package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"upwork_rss_bot/internal/config"
	"upwork_rss_bot/internal/fetcher"
	"upwork_rss_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Scheduler starts and stops periodic checking for a chat.
type Scheduler interface {
	Start(ctx context.Context, chatID int64) error
	Stop(ctx context.Context, chatID int64) error
}

// Bot is the Telegram bot that handles user commands and delivers notifications.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	cfg     *config.Config
	fetcher *fetcher.Fetcher
	sched   Scheduler
	prompts *prompts
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	f := fetcher.New(&http.Client{Timeout: 30 * time.Second})
	f.SetLogger(log)

	return &Bot{
		api:     api,
		store:   store,
		cfg:     cfg,
		fetcher: f,
		prompts: newPrompts(),
		log:     log,
	}, nil
}

// SetScheduler sets the scheduler driven by /run and /break_run.
func (b *Bot) SetScheduler(s Scheduler) {
	b.sched = s
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.reply(cb.Message.Chat.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	b.handleMessage(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.log.Info("command",
			"cmd", msg.Command(),
			"chat_id", chatID,
			"user_id", msg.From.ID,
			"username", msg.From.UserName,
		)
		b.prompts.clear(chatID)
		b.dispatch(ctx, chatID, ParseCommand(msg.Command(), msg.CommandArguments()))
		return
	}

	b.handleText(ctx, chatID, strings.TrimSpace(msg.Text))
}

func (b *Bot) dispatch(ctx context.Context, chatID int64, cmd Command) {
	switch c := cmd.(type) {
	case StartCommand:
		b.handleStart(chatID)
	case HelpCommand:
		b.handleHelp(chatID)
	case AddCommand:
		b.handleAdd(ctx, chatID, c)
	case DeleteCommand:
		b.handleDelete(ctx, chatID, c)
	case ListCommand:
		b.handleList(ctx, chatID)
	case RunCommand:
		b.handleRun(ctx, chatID)
	case StopCommand:
		b.handleStop(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// Deliver sends one notification message. It satisfies notify.Sender.
func (b *Bot) Deliver(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendMessage sends a text message to the given chat, logging failures.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// replyWithMenu replies and shows the command keyboard.
func (b *Bot) replyWithMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menuKeyboard()
	b.send(msg)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

// Fetcher returns the feed fetcher used to validate new subscriptions.
func (b *Bot) Fetcher() *fetcher.Fetcher {
	return b.fetcher
}
