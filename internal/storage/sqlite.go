package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"upwork_rss_bot/internal/model"
	"upwork_rss_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Defaults for Limits.
const (
	DefaultMaxSubscriptions = 500
	DefaultSeenRetention    = 10000
)

// Limits bounds the per-chat collections.
type Limits struct {
	// MaxSubscriptions keeps only the newest N subscriptions of a chat.
	MaxSubscriptions int
	// SeenRetention keeps only the newest N seen links of a chat; 0 disables pruning.
	SeenRetention int
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db     *sql.DB
	limits Limits
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are private to the connection that created them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{
		db: db,
		limits: Limits{
			MaxSubscriptions: DefaultMaxSubscriptions,
			SeenRetention:    DefaultSeenRetention,
		},
	}, nil
}

// SetLimits overrides the default collection bounds.
func (s *SQLite) SetLimits(l Limits) {
	s.limits = l
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddSubscription appends a subscription to the chat's list and drops the
// oldest ones beyond the subscription limit. A URL the chat already has
// yields ErrDuplicateURL.
func (s *SQLite) AddSubscription(ctx context.Context, sub *model.Subscription) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE chat_id = ? AND url = ?`,
		sub.ChatID, sub.URL,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateURL
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (chat_id, name, url, created_at) VALUES (?, ?, ?, ?)`,
		sub.ChatID, sub.Name, sub.URL, now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscriptions
		 WHERE chat_id = ?
		   AND id NOT IN (SELECT id FROM subscriptions WHERE chat_id = ? ORDER BY id DESC LIMIT ?)`,
		sub.ChatID, sub.ChatID, s.limits.MaxSubscriptions,
	); err != nil {
		return fmt.Errorf("trim subscriptions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	sub.ID = id
	sub.CreatedAt = now
	return nil
}

// ListSubscriptions returns the chat's subscriptions in insertion order.
func (s *SQLite) ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, name, url, created_at FROM subscriptions WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var created string
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.Name, &sub.URL, &created); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.CreatedAt, _ = time.Parse(timeLayout, created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubscriptionsByName removes every subscription of the chat with the
// given name and reports how many were removed.
func (s *SQLite) DeleteSubscriptionsByName(ctx context.Context, chatID int64, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE chat_id = ? AND name = ?`, chatID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("delete subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// LoadSeen returns every entry link already recorded for the chat.
func (s *SQLite) LoadSeen(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT link FROM seen_entries WHERE chat_id = ?`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query seen entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan seen entry: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// TouchSeen stamps links as seen now, inserting new ones and refreshing the
// stamp of known ones, then prunes the chat's set to the retention limit in
// the same transaction. Links are stamped in slice order so later links count
// as newer. Links touched by this call are never pruned by it.
func (s *SQLite) TouchSeen(ctx context.Context, chatID int64, links []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(links) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO seen_entries (chat_id, link, seen_at) VALUES (?, ?, ?)
			 ON CONFLICT(chat_id, link) DO UPDATE SET seen_at = excluded.seen_at`,
		)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := time.Now().UTC()
		for i, link := range links {
			at := now.Add(time.Duration(i)).Format(timeLayout)
			if _, err := stmt.ExecContext(ctx, chatID, link, at); err != nil {
				return fmt.Errorf("upsert seen entry: %w", err)
			}
		}
	}

	if s.limits.SeenRetention > 0 {
		keep := max(s.limits.SeenRetention, len(links))
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM seen_entries
			 WHERE chat_id = ?
			   AND link NOT IN (
			       SELECT link FROM seen_entries WHERE chat_id = ?
			       ORDER BY seen_at DESC LIMIT ?)`,
			chatID, chatID, keep,
		); err != nil {
			return fmt.Errorf("prune seen entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// BaselineDone reports whether the chat's first poll cycle has completed.
func (s *SQLite) BaselineDone(ctx context.Context, chatID int64) (bool, error) {
	var done int
	err := s.db.QueryRowContext(ctx,
		`SELECT baseline_done FROM user_state WHERE chat_id = ?`, chatID,
	).Scan(&done)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query baseline: %w", err)
	}
	return done == 1, nil
}

// MarkBaselineDone records that the chat's first poll cycle has completed.
func (s *SQLite) MarkBaselineDone(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_state (chat_id, baseline_done, updated_at) VALUES (?, 1, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET baseline_done = 1, updated_at = excluded.updated_at`,
		chatID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark baseline: %w", err)
	}
	return nil
}

// SetRunning persists whether periodic checking is enabled for the chat.
func (s *SQLite) SetRunning(ctx context.Context, chatID int64, running bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_state (chat_id, running, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET running = excluded.running, updated_at = excluded.updated_at`,
		chatID, boolToInt(running), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("set running: %w", err)
	}
	return nil
}

// ListRunning returns the chats that had periodic checking enabled.
func (s *SQLite) ListRunning(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM user_state WHERE running = 1 ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query running: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
