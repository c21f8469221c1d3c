// Package dedup tracks which feed entries a chat has already been shown.
package dedup

import (
	"context"
	"fmt"
)

// Store is the persisted seen-set of each chat.
type Store interface {
	LoadSeen(ctx context.Context, chatID int64) ([]string, error)
	TouchSeen(ctx context.Context, chatID int64, links []string) error
}

// Set is the working seen-set of one chat for one poll cycle. It is loaded
// once at the start of the cycle, updated in memory as entries are
// discovered, and written back by Save. A Set is not safe for concurrent use;
// a cycle runs sequentially.
type Set struct {
	chatID int64
	// seen maps every known link to whether it was observed this cycle.
	seen map[string]bool
	// observed lists the links found upstream this cycle, known or not.
	observed []string
}

// Load reads the chat's persisted seen-set.
func Load(ctx context.Context, store Store, chatID int64) (*Set, error) {
	links, err := store.LoadSeen(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load seen set: %w", err)
	}
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		seen[l] = false
	}
	return &Set{chatID: chatID, seen: seen}, nil
}

// IsNovel reports whether link has not been seen yet.
func (s *Set) IsNovel(link string) bool {
	_, ok := s.seen[link]
	return !ok
}

// MarkSeen records that link is present upstream. It reports true only when
// the link was not in the set before.
func (s *Set) MarkSeen(link string) bool {
	observed, known := s.seen[link]
	if !observed {
		s.seen[link] = true
		s.observed = append(s.observed, link)
	}
	return !known
}

// Save persists every link observed this cycle, refreshing the stamp of
// links that are still upstream so retention only drops links that left
// all feeds. It is called every cycle, also when nothing was observed.
func (s *Set) Save(ctx context.Context, store Store) error {
	if err := store.TouchSeen(ctx, s.chatID, s.observed); err != nil {
		return fmt.Errorf("save seen set: %w", err)
	}
	s.observed = nil
	return nil
}
