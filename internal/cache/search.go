package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandon/mail-agent/pkg/types"
)

// SearchOptions contains search parameters
type SearchOptions struct {
	// Term is matched against subject and sender with FTS5. Empty matches
	// everything.
	Term       string
	Folder     *string
	UnreadOnly bool
	Limit      int
}

// SearchCached searches cached message summaries, newest first.
func (s *Store) SearchCached(ctx context.Context, opts SearchOptions) ([]types.CachedMessage, error) {
	var conditions []string
	var args []interface{}

	if q := ftsQuery(opts.Term); q != "" {
		conditions = append(conditions, "m.id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)")
		args = append(args, q)
	}

	if opts.Folder != nil {
		conditions = append(conditions, "m.folder = ?")
		args = append(args, *opts.Folder)
	}

	if opts.UnreadOnly {
		conditions = append(conditions, "m.is_read = 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT m.uid, m.subject, m.sender, m.date, m.is_read, a.name AS account_name, m.folder, m.cached_at
		FROM messages m
		JOIN accounts a ON m.account_id = a.id
		%s
		ORDER BY m.sort_date IS NULL, m.sort_date DESC, m.id DESC
		LIMIT ?
	`, whereClause)

	args = append(args, clampLimit(opts.Limit, 100, 1000))

	results := []types.CachedMessage{}
	if err := s.cache.DB().SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search cached messages: %w", err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 expression that matches rows
// containing every word. Each word is quoted so operators in user input are
// taken literally.
func ftsQuery(term string) string {
	words := strings.Fields(term)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
