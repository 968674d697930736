package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/cache"
	"github.com/brandon/mail-agent/internal/credential"
	"github.com/brandon/mail-agent/pkg/types"
)

// SecretStore persists account secrets.
type SecretStore interface {
	Set(key, value string) error
}

// Account describes the configured mailbox without its secrets.
type Account struct {
	Host string `json:"imap_host"`
	Port int    `json:"imap_port"`
	User string `json:"user"`
}

// Inbox is one page of a folder listing.
type Inbox struct {
	Folder string                 `json:"folder"`
	Emails []types.MessageSummary `json:"emails"`
	Total  int                    `json:"total"`
}

// Manager is the mail service behind the tools: one Session for reading,
// one SMTPSender for sending, and an optional cache mirroring what was read.
type Manager struct {
	session *Session
	sender  *SMTPSender
	store   *cache.Store
	secrets SecretStore
	logger  *logrus.Logger

	mu        sync.Mutex
	account   Account
	accountID int64
}

// NewManager creates a manager. store and secrets may be nil.
func NewManager(session *Session, sender *SMTPSender, store *cache.Store, secrets SecretStore, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		session: session,
		sender:  sender,
		store:   store,
		secrets: secrets,
		logger:  logger,
	}
}

// Session returns the underlying mailbox session.
func (m *Manager) Session() *Session {
	return m.session
}

// Connect switches to a new account and connects to it. When remember is
// set the IMAP secret is saved for later runs.
func (m *Manager) Connect(ctx context.Context, creds Credentials, smtp SMTPConfig, remember bool) error {
	m.session.Reconfigure(creds)
	if err := m.session.Connect(); err != nil {
		return err
	}
	if m.sender != nil {
		m.sender.Reconfigure(smtp)
	}

	m.mu.Lock()
	m.account = Account{Host: creds.Host, Port: creds.Port, User: creds.User}
	m.accountID = 0
	m.mu.Unlock()

	if remember && m.secrets != nil {
		if err := m.secrets.Set(credential.IMAPKey(creds.User), creds.Secret); err != nil {
			m.logger.WithError(err).Warn("Failed to store credential")
		}
	}

	m.ensureAccount(ctx)
	return nil
}

// Adopt records the account a session was configured with at startup.
func (m *Manager) Adopt(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = Account{Host: creds.Host, Port: creds.Port, User: creds.User}
	m.accountID = 0
}

// Status reports whether the mailbox answers, and as whom.
type Status struct {
	Connected bool   `json:"connected"`
	User      string `json:"user"`
}

// Configured reports whether mailbox credentials are set.
func (m *Manager) Configured() bool {
	return m.session.Configured()
}

// Status probes the session. The user is only reported while connected.
func (m *Manager) Status() Status {
	if !m.session.IsConnected() {
		return Status{}
	}
	return Status{Connected: true, User: m.session.User()}
}

// Search runs a UID SEARCH in folder.
func (m *Manager) Search(query, folder string) ([]string, error) {
	return m.session.Search(query, folder)
}

// FetchHeaders fetches summaries from the selected folder, newest first.
func (m *Manager) FetchHeaders(uids []string, limit int) ([]types.MessageSummary, error) {
	return m.session.FetchHeaders(uids, limit)
}

// Account returns the configured account.
func (m *Manager) Account() Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

// ListFolders lists folders and records them in the cache.
func (m *Manager) ListFolders(ctx context.Context) ([]string, error) {
	folders, err := m.session.ListFolders()
	if err != nil {
		return nil, err
	}
	if id, ok := m.ensureAccount(ctx); ok {
		if err := m.store.UpsertFolders(ctx, id, folders); err != nil {
			m.logger.WithError(err).Warn("Failed to cache folders")
		}
	}
	return folders, nil
}

// ListInbox returns the newest limit messages of folder. Total counts every
// message in the folder.
func (m *Manager) ListInbox(ctx context.Context, folder string, limit int) (*Inbox, error) {
	if folder == "" {
		folder = DefaultFolder
	}

	uids, err := m.session.Search("ALL", folder)
	if err != nil {
		return nil, err
	}
	emails, err := m.session.FetchHeaders(uids, limit)
	if err != nil {
		return nil, err
	}
	m.cacheSummaries(ctx, folder, emails, len(uids))

	return &Inbox{Folder: folder, Emails: emails, Total: len(uids)}, nil
}

// GetEmail fetches and parses one message of folder.
func (m *Manager) GetEmail(folder, uid string) (*types.ParsedEmail, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if _, err := m.session.SelectFolder(folder); err != nil {
		return nil, err
	}
	raw, err := m.session.FetchFullMessage(uid)
	if err != nil {
		return nil, err
	}
	flags, err := m.session.FetchFlags(uid)
	if err != nil {
		return nil, err
	}
	return ParseMessage(uid, raw, flags)
}

// FetchSummaries returns summaries of the given uids of folder, newest
// first. Unknown uids are skipped.
func (m *Manager) FetchSummaries(folder string, uids []string) ([]types.MessageSummary, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if _, err := m.session.SelectFolder(folder); err != nil {
		return nil, err
	}
	return m.session.FetchHeaders(uids, 0)
}

// CacheResults stores summaries found by a search of folder.
func (m *Manager) CacheResults(ctx context.Context, folder string, emails []types.MessageSummary) {
	m.cacheSummaries(ctx, folder, emails, -1)
}

// SendEmail sends msg through the configured SMTP account.
func (m *Manager) SendEmail(msg *OutgoingMessage) error {
	if m.sender == nil {
		return fmt.Errorf("SMTP is not configured")
	}
	if err := m.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Close logs out of the mailbox.
func (m *Manager) Close() error {
	m.session.Disconnect()
	return nil
}

// cacheSummaries stores emails; total >= 0 also updates the folder count.
// Cache failures never fail the mail operation.
func (m *Manager) cacheSummaries(ctx context.Context, folder string, emails []types.MessageSummary, total int) {
	id, ok := m.ensureAccount(ctx)
	if !ok {
		return
	}
	if err := m.store.UpsertSummaries(ctx, id, folder, emails); err != nil {
		m.logger.WithError(err).WithField("folder", folder).Warn("Failed to cache emails")
	}
	if total >= 0 {
		if err := m.store.MarkFolderSynced(ctx, id, folder, total); err != nil {
			m.logger.WithError(err).WithField("folder", folder).Warn("Failed to cache folder")
		}
	}
}

// ensureAccount returns the cache id of the current account, creating the
// row on first use.
func (m *Manager) ensureAccount(ctx context.Context) (int64, bool) {
	if m.store == nil {
		return 0, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account.User == "" {
		return 0, false
	}
	if m.accountID != 0 {
		return m.accountID, true
	}

	id, err := m.store.UpsertAccount(ctx, cache.Account{
		Name:     m.account.User,
		IMAPHost: m.account.Host,
		IMAPPort: m.account.Port,
		Username: m.account.User,
	})
	if err != nil {
		m.logger.WithError(err).Warn("Failed to cache account")
		return 0, false
	}
	m.accountID = id
	return id, true
}
