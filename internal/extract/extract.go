// Package extract parses the semi-structured job details embedded in feed entry summaries.
//
// Summaries look like:
//
//	<b>Budget</b>: $500
//	<br /><b>Skills</b>:Go,  PostgreSQL ,Docker<br />
//	<b>Country</b>: Germany
//	<br />
//
// Only the bold labels count; the same words in the free-text description
// are ignored. Every field is optional. A missing or malformed field falls back to its
// default and never affects the other fields.
package extract

import (
	"regexp"
	"strings"

	"upwork_rss_bot/internal/model"
)

var (
	skillsRe  = regexp.MustCompile(`(?s)<b>Skills</b>:(.*?)<br\s*/?>`)
	countryRe = regexp.MustCompile(`(?s)<b>Country</b>:\s*(.*?)<br\s*/?>`)
	budgetRe  = regexp.MustCompile(`<b>Budget</b>:\s*\$?([\d,]+)`)
	hourlyRe  = regexp.MustCompile(`<b>Hourly Range</b>:\s*\$([\d,.]+)\s*-\s*\$([\d,.]+)`)
)

// Fields extracts skills, country and budget from an entry summary.
func Fields(summary string) model.Fields {
	return model.Fields{
		Skills:  Skills(summary),
		Country: Country(summary),
		Budget:  Budget(summary),
	}
}

// Skills returns the comma separated skills list in original order.
// Tokens are trimmed and empty ones dropped.
func Skills(summary string) []string {
	m := skillsRe.FindStringSubmatch(summary)
	if m == nil {
		return []string{}
	}
	skills := []string{}
	for _, s := range strings.Split(m[1], ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

// Country returns the client country or model.NotAvailable.
func Country(summary string) string {
	m := countryRe.FindStringSubmatch(summary)
	if m == nil {
		return model.NotAvailable
	}
	if c := strings.TrimSpace(m[1]); c != "" {
		return c
	}
	return model.NotAvailable
}

// Budget returns the fixed price amount, or the hourly range formatted as
// "<min>-$<max> per hour". A fixed price wins when both are present.
func Budget(summary string) string {
	if m := budgetRe.FindStringSubmatch(summary); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := hourlyRe.FindStringSubmatch(summary); m != nil {
		return strings.TrimSpace(m[1]) + "-$" + strings.TrimSpace(m[2]) + " per hour"
	}
	return model.NotAvailable
}
