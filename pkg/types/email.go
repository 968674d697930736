package types

import "time"

// MessageSummary is the list-view shape of a message: one row of an inbox
// listing or of a search result.
type MessageSummary struct {
	UID     string `json:"uid" db:"uid"`
	Subject string `json:"subject" db:"subject"`
	Sender  string `json:"sender" db:"sender"`
	Date    string `json:"date" db:"date"`
	IsRead  bool   `json:"is_read" db:"is_read"`
}

// ParsedEmail represents a fully fetched and decoded message
type ParsedEmail struct {
	UID         string       `json:"uid"`
	Subject     string       `json:"subject"`
	Sender      string       `json:"sender"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc"`
	Date        string       `json:"date"`
	BodyPlain   string       `json:"body_plain"`
	BodyHTML    string       `json:"body_html"`
	Attachments []Attachment `json:"attachments"`
	Flags       []string     `json:"flags,omitempty"`
}

// Attachment describes an attachment without carrying its content
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Folder represents an email folder/mailbox
type Folder struct {
	ID           int        `json:"id" db:"id"`
	AccountName  string     `json:"account_name" db:"account_name"`
	Name         string     `json:"name" db:"name"`
	MessageCount int        `json:"message_count" db:"message_count"`
	LastSynced   *time.Time `json:"last_synced,omitempty" db:"last_synced"`
}

// SearchRun is one recorded natural-language search
type SearchRun struct {
	ID         string    `json:"id" db:"id"`
	Query      string    `json:"query" db:"query"`
	Folder     string    `json:"folder" db:"folder"`
	IMAPQuery  string    `json:"imap_query" db:"imap_query"`
	Summary    string    `json:"summary" db:"summary"`
	MatchCount int       `json:"match_count" db:"match_count"`
	Rounds     int       `json:"rounds" db:"rounds"`
	Exhausted  bool      `json:"exhausted" db:"exhausted"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CachedMessage is a message summary as stored in the local cache
type CachedMessage struct {
	MessageSummary
	AccountName string    `json:"account_name" db:"account_name"`
	Folder      string    `json:"folder" db:"folder"`
	CachedAt    time.Time `json:"cached_at" db:"cached_at"`
}
