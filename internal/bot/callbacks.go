package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"upwork_rss_bot/internal/model"
)

const cbDelete = "delete"

func (b *Bot) sendDeleteChoice(chatID int64, subs []model.Subscription) {
	msg := tgbotapi.NewMessage(chatID,
		"Select the RSS feed to delete or type its name:\n"+FormatSubscriptionNames(subs))
	msg.ReplyMarkup = deleteKeyboard(subs)
	b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, idStr, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbDelete:
		subs, err := b.store.ListSubscriptions(ctx, chatID)
		if err != nil {
			b.log.Error("list subscriptions", "chat_id", chatID, "error", err)
			return
		}
		for _, s := range subs {
			if s.ID == id {
				b.deleteByName(ctx, chatID, s.Name)
				return
			}
		}
		b.prompts.clear(chatID)
		b.reply(chatID, "RSS feed not found.")
	}
}
