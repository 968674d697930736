package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{DateLayout, "2-Jan-2006", "2006-01-02"}

// ParseDate accepts DD-Mon-YYYY (one-digit day allowed) or YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FromToolInput converts the JSON arguments of a search tool call into
// Filters. Fields that are present but malformed are dropped and reported in
// the returned warnings; unparseable input as a whole yields empty Filters.
// Recognized keys: from_addr, to_addr, subject, body, since, before, unseen,
// flagged.
func FromToolInput(raw json.RawMessage) (Filters, []string) {
	var f Filters
	var warnings []string

	if len(raw) == 0 {
		return f, nil
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return f, []string{fmt.Sprintf("tool input is not an object: %v", err)}
	}

	text := func(key string) *string {
		v, ok := input[key]
		if !ok || v == nil {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: expected a string, got %T", key, v))
			return nil
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return &s
	}
	date := func(key string) *time.Time {
		s := text(key)
		if s == nil {
			return nil
		}
		t, err := ParseDate(*s)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return nil
		}
		return &t
	}
	flag := func(key string) *bool {
		v, ok := input[key]
		if !ok || v == nil {
			return nil
		}
		b, ok := v.(bool)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: expected a boolean, got %T", key, v))
			return nil
		}
		return &b
	}

	f.From = text("from_addr")
	f.To = text("to_addr")
	f.Subject = text("subject")
	f.Body = text("body")
	f.Since = date("since")
	f.Before = date("before")
	f.Flagged = flag("flagged")
	f.Unseen = flag("unseen")

	return f, warnings
}
