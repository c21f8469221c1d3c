// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"upwork_rss_bot/internal/model"
)

// ErrDuplicateURL is returned when a chat subscribes to a URL it already has.
var ErrDuplicateURL = errors.New("subscription url already added")

// Storage is the interface for all persistence operations.
// All state is partitioned by chat ID.
type Storage interface {
	AddSubscription(ctx context.Context, sub *model.Subscription) error
	ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error)
	DeleteSubscriptionsByName(ctx context.Context, chatID int64, name string) (int64, error)

	LoadSeen(ctx context.Context, chatID int64) ([]string, error)
	TouchSeen(ctx context.Context, chatID int64, links []string) error

	BaselineDone(ctx context.Context, chatID int64) (bool, error)
	MarkBaselineDone(ctx context.Context, chatID int64) error

	SetRunning(ctx context.Context, chatID int64, running bool) error
	ListRunning(ctx context.Context) ([]int64, error)

	Close() error
}
