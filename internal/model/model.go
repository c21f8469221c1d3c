// Package model defines the domain types used across the application.
package model

import "time"

// NotAvailable is the placeholder for an extracted field that is absent from the summary.
const NotAvailable = "N/A"

// Subscription is a named RSS feed a chat is subscribed to.
type Subscription struct {
	ID        int64
	ChatID    int64
	Name      string
	URL       string
	CreatedAt time.Time
}

// Entry is a single feed entry as returned by the fetcher.
// Link is the entry's identity for deduplication.
type Entry struct {
	Link    string
	Title   string
	Summary string
}

// Fields holds the structured attributes parsed out of an entry summary.
type Fields struct {
	Skills  []string
	Country string
	Budget  string
}

// Record is a novel entry ready to be shown to the user.
type Record struct {
	Title   string
	Link    string
	Skills  []string
	Country string
	Budget  string
}
