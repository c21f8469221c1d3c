package notify

import (
	"fmt"
	"strings"

	"upwork_rss_bot/internal/model"
)

// FormatRecord renders a record as one notification block.
func FormatRecord(r model.Record) string {
	var b strings.Builder
	b.WriteString("New entry:\n")
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "Link: %s\n", r.Link)
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(r.Skills, ", "))
	fmt.Fprintf(&b, "Country: %s\n", r.Country)
	fmt.Fprintf(&b, "Budget: %s", r.Budget)
	return b.String()
}
