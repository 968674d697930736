// Package search renders structured mailbox filters into IMAP SEARCH
// criteria.
package search

import (
	"strings"
	"time"
)

// DateLayout is the day-month-year form IMAP uses in date criteria.
const DateLayout = "02-Jan-2006"

// MatchAll is the query returned when no filter is set.
const MatchAll = "ALL"

// Filters constrains a mailbox search. A nil field imposes no constraint.
type Filters struct {
	From    *string
	To      *string
	Subject *string
	Body    *string
	Since   *time.Time
	Before  *time.Time
	// Flagged selects FLAGGED when true and UNFLAGGED when false.
	Flagged *bool
	// Unseen selects UNSEEN when true and SEEN when false.
	Unseen *bool
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return BuildQuery(f) == MatchAll
}

// BuildQuery renders f as one parenthesized group of clauses joined by
// implicit AND, in a fixed order: FROM, TO, SUBJECT, BODY, SINCE, BEFORE,
// FLAGGED/UNFLAGGED, UNSEEN/SEEN. Empty text filters are ignored.
func BuildQuery(f Filters) string {
	var parts []string

	addText := func(key string, value *string) {
		if value != nil && *value != "" {
			parts = append(parts, key+" "+quote(*value))
		}
	}
	addText("FROM", f.From)
	addText("TO", f.To)
	addText("SUBJECT", f.Subject)
	addText("BODY", f.Body)

	if f.Since != nil {
		parts = append(parts, "SINCE "+f.Since.Format(DateLayout))
	}
	if f.Before != nil {
		parts = append(parts, "BEFORE "+f.Before.Format(DateLayout))
	}

	if f.Flagged != nil {
		if *f.Flagged {
			parts = append(parts, "FLAGGED")
		} else {
			parts = append(parts, "UNFLAGGED")
		}
	}
	if f.Unseen != nil {
		if *f.Unseen {
			parts = append(parts, "UNSEEN")
		} else {
			parts = append(parts, "SEEN")
		}
	}

	if len(parts) == 0 {
		return MatchAll
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// quote renders s as an IMAP quoted string. 8-bit text is kept; the
// transport turns such strings into literals.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", " ", "\n", " ")
	return `"` + r.Replace(s) + `"`
}
