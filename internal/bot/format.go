package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"upwork_rss_bot/internal/model"
)

// maxDeleteButtons caps the inline keyboard; further names can still be typed.
const maxDeleteButtons = 50

const startText = `Welcome to Upwork RSS Bot!

Add Upwork job search RSS feeds and get notified about new jobs.

Quick start:
1. /add - add an RSS feed
2. /run - start periodic checking

Use /help for the full command reference.`

const helpText = `Feeds:
/add - add an RSS feed (asks for URL and name)
/add <url> <name> - add an RSS feed in one step
/delete - choose a feed to delete
/delete <name> - delete every feed with this name
/list - show your feeds

Checking:
/run - check your feeds every minute
/break_run - stop checking`

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/"+cmdAdd),
			tgbotapi.NewKeyboardButton("/"+cmdDelete),
			tgbotapi.NewKeyboardButton("/"+cmdList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/"+cmdRun),
			tgbotapi.NewKeyboardButton("/"+cmdBreakRun),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// uniqueNames returns the first subscription of each distinct name.
func uniqueNames(subs []model.Subscription) []model.Subscription {
	seen := make(map[string]bool, len(subs))
	var out []model.Subscription
	for _, s := range subs {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}

// FormatSubscriptionNames renders the distinct subscription names, one per line.
func FormatSubscriptionNames(subs []model.Subscription) string {
	var sb strings.Builder
	for _, s := range uniqueNames(subs) {
		sb.WriteString("- ")
		sb.WriteString(s.Name)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatSubscriptionList renders the /list reply.
func FormatSubscriptionList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "You have no RSS feeds yet. Use /add to add one."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your RSS feeds (%d):\n\n", len(subs))
	for i, s := range subs {
		fmt.Fprintf(&sb, "%d. %s\n%s\n", i+1, s.Name, s.URL)
		if i < len(subs)-1 {
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func deleteKeyboard(subs []model.Subscription) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, s := range uniqueNames(subs) {
		if i == maxDeleteButtons {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, fmt.Sprintf("%s:%d", cbDelete, s.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
