package cache

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/pkg/types"
)

// Account identifies the mailbox a cached row belongs to.
type Account struct {
	Name     string
	IMAPHost string
	IMAPPort int
	Username string
}

// Store provides methods for storing and retrieving data from the cache
type Store struct {
	cache  *Cache
	logger *logrus.Logger
	now    func() time.Time
}

// NewStore creates a new store instance
func NewStore(cache *Cache, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertAccount upserts an account in the cache and returns its id.
func (s *Store) UpsertAccount(ctx context.Context, acc Account) (int64, error) {
	now := s.now()
	var id int64
	err := s.cache.DB().GetContext(ctx, &id, `
		INSERT INTO accounts (name, imap_host, imap_port, username, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			username = excluded.username,
			updated_at = excluded.updated_at
		RETURNING id`,
		acc.Name, acc.IMAPHost, acc.IMAPPort, acc.Username, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}
	return id, nil
}

// GetAccountID returns the account ID by name
func (s *Store) GetAccountID(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := s.cache.DB().GetContext(ctx, &id, "SELECT id FROM accounts WHERE name = ?", name); err != nil {
		return 0, fmt.Errorf("account not found: %s", name)
	}
	return id, nil
}

// UpsertFolders records the folder names of an account. Message counts of
// folders already known are left untouched.
func (s *Store) UpsertFolders(ctx context.Context, accountID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}

	tx, err := s.cache.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO folders (account_id, name) VALUES (?, ?)
		ON CONFLICT(account_id, name) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare folder upsert: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, accountID, name); err != nil {
			return fmt.Errorf("failed to upsert folder %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// MarkFolderSynced stores the message count of a folder as of now.
func (s *Store) MarkFolderSynced(ctx context.Context, accountID int64, name string, messageCount int) error {
	_, err := s.cache.DB().ExecContext(ctx, `
		INSERT INTO folders (account_id, name, message_count, last_synced)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, name) DO UPDATE SET
			message_count = excluded.message_count,
			last_synced = excluded.last_synced`,
		accountID, name, messageCount, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark folder %s synced: %w", name, err)
	}
	return nil
}

// ListFolders lists the cached folders of an account.
func (s *Store) ListFolders(ctx context.Context, accountID int64) ([]types.Folder, error) {
	folders := []types.Folder{}
	err := s.cache.DB().SelectContext(ctx, &folders, `
		SELECT f.id, a.name AS account_name, f.name, f.message_count, f.last_synced
		FROM folders f
		JOIN accounts a ON f.account_id = a.id
		WHERE f.account_id = ?
		ORDER BY f.name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	return folders, nil
}

// UpsertSummaries caches message summaries of one folder.
func (s *Store) UpsertSummaries(ctx context.Context, accountID int64, folder string, summaries []types.MessageSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.cache.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO messages (account_id, folder, uid, subject, sender, date, sort_date, is_read, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, folder, uid) DO UPDATE SET
			subject = excluded.subject,
			sender = excluded.sender,
			date = excluded.date,
			sort_date = excluded.sort_date,
			is_read = excluded.is_read,
			cached_at = excluded.cached_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare message upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, m := range summaries {
		_, err := stmt.ExecContext(ctx,
			accountID, folder, m.UID, m.Subject, m.Sender, m.Date,
			sortDate(m.Date), boolToInt(m.IsRead), now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert message %s: %w", m.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"folder": folder,
		"count":  len(summaries),
	}).Debug("Cached message summaries")
	return nil
}

// RecordSearch stores a finished natural-language search.
func (s *Store) RecordSearch(ctx context.Context, run types.SearchRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	_, err := s.cache.DB().NamedExecContext(ctx, `
		INSERT INTO search_runs (id, query, folder, imap_query, summary, match_count, rounds, exhausted, created_at)
		VALUES (:id, :query, :folder, :imap_query, :summary, :match_count, :rounds, :exhausted, :created_at)`,
		run,
	)
	if err != nil {
		return fmt.Errorf("failed to record search %s: %w", run.ID, err)
	}
	return nil
}

// RecentSearches returns the latest searches, newest first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]types.SearchRun, error) {
	limit = clampLimit(limit, 20, 200)

	runs := []types.SearchRun{}
	err := s.cache.DB().SelectContext(ctx, &runs, `
		SELECT id, query, folder, imap_query, summary, match_count, rounds, exhausted, created_at
		FROM search_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	return runs, nil
}

// sortDate parses a Date header for ordering; nil when it does not parse.
func sortDate(header string) *time.Time {
	t, err := mail.ParseDate(header)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
