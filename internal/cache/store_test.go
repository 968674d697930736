package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-agent/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := NewCache(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewStore(c, logger)
}

func testAccount(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.UpsertAccount(context.Background(), Account{
		Name:     "bob@example.com",
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		Username: "bob@example.com",
	})
	require.NoError(t, err)
	return id
}

func TestUpsertAccountIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testAccount(t, s)
	second, err := s.UpsertAccount(ctx, Account{Name: "bob@example.com", IMAPHost: "imap2.example.com", IMAPPort: 143, Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	id, err := s.GetAccountID(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, first, id)

	_, err = s.GetAccountID(ctx, "nobody")
	assert.Error(t, err)
}

func TestFolders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := testAccount(t, s)

	require.NoError(t, s.UpsertFolders(ctx, acc, []string{"INBOX", "Archive", "Sent"}))
	require.NoError(t, s.MarkFolderSynced(ctx, acc, "INBOX", 42))
	require.NoError(t, s.UpsertFolders(ctx, acc, []string{"INBOX"}))

	folders, err := s.ListFolders(ctx, acc)
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "Archive", folders[0].Name)
	assert.Nil(t, folders[0].LastSynced)

	inbox := folders[1]
	assert.Equal(t, "INBOX", inbox.Name)
	assert.Equal(t, "bob@example.com", inbox.AccountName)
	assert.Equal(t, 42, inbox.MessageCount)
	assert.NotNil(t, inbox.LastSynced)
}

func TestSearchCached(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := testAccount(t, s)

	require.NoError(t, s.UpsertSummaries(ctx, acc, "INBOX", []types.MessageSummary{
		{UID: "1", Subject: "Quarterly budget", Sender: "Alice <alice@example.com>", Date: "Mon, 3 Mar 2025 10:00:00 +0000", IsRead: true},
		{UID: "2", Subject: "Lunch plans", Sender: "Carol <carol@example.com>", Date: "Tue, 4 Mar 2025 10:00:00 +0000"},
		{UID: "3", Subject: "Budget follow-up", Sender: "Alice <alice@example.com>", Date: "Wed, 5 Mar 2025 10:00:00 +0000"},
	}))

	results, err := s.SearchCached(ctx, SearchOptions{Term: "alice"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "3", results[0].UID)
	assert.Equal(t, "1", results[1].UID)
	assert.Equal(t, "bob@example.com", results[0].AccountName)
	assert.Equal(t, "INBOX", results[0].Folder)

	results, err = s.SearchCached(ctx, SearchOptions{Term: "budget", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "3", results[0].UID)

	all, err := s.SearchCached(ctx, SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	other := "Archive"
	none, err := s.SearchCached(ctx, SearchOptions{Folder: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertSummariesRefreshesIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := testAccount(t, s)

	require.NoError(t, s.UpsertSummaries(ctx, acc, "INBOX", []types.MessageSummary{{UID: "7", Subject: "Draft agenda", Sender: "dave@example.com"}}))
	require.NoError(t, s.UpsertSummaries(ctx, acc, "INBOX", []types.MessageSummary{{UID: "7", Subject: "Final agenda", Sender: "dave@example.com", IsRead: true}}))

	results, err := s.SearchCached(ctx, SearchOptions{Term: "draft"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.SearchCached(ctx, SearchOptions{Term: "final agenda"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsRead)
}

func TestSearchHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSearch(ctx, types.SearchRun{ID: "a", Query: "from alice", Folder: "INBOX", IMAPQuery: `(FROM "alice")`, MatchCount: 2, Rounds: 2, CreatedAt: base}))
	require.NoError(t, s.RecordSearch(ctx, types.SearchRun{ID: "b", Query: "anything", Folder: "INBOX", Rounds: 5, Exhausted: true, CreatedAt: base.Add(time.Minute)}))

	runs, err := s.RecentSearches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.True(t, runs[0].Exhausted)
	assert.Equal(t, `(FROM "alice")`, runs[1].IMAPQuery)
	assert.Equal(t, 2, runs[1].MatchCount)

	runs, err = s.RecentSearches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, "", ftsQuery("   "))
	assert.Equal(t, `"budget" "q1"`, ftsQuery("budget q1"))
	assert.Equal(t, `"say""hi"`, ftsQuery(`say"hi`))
}
