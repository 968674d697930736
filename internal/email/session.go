package email

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/pkg/types"
)

// DefaultFolder is selected when an operation needs a folder and none has
// been selected on the current connection.
const DefaultFolder = "INBOX"

// Policy holds the staleness heuristics of a Session. Both windows are tuned
// to servers that drop idle connections after about ten minutes.
type Policy struct {
	// FreshnessWindow is how long after the last round trip IsConnected
	// trusts the connection without a NOOP.
	FreshnessWindow time.Duration
	// RefreshWindow is the idle time after which an operation reconnects
	// before running instead of waiting for the server to drop us.
	RefreshWindow time.Duration
}

// DefaultPolicy returns the 5 minute trust / 8 minute refresh policy.
func DefaultPolicy() Policy {
	return Policy{
		FreshnessWindow: 5 * time.Minute,
		RefreshWindow:   8 * time.Minute,
	}
}

// Credentials are the connection parameters of a Session.
type Credentials struct {
	Host   string
	Port   int
	User   string
	Secret string
}

// Session is a long-lived, self-healing mailbox client. It owns at most one
// Connection at a time; the folder selection cached on a connection dies
// with it. All methods serialize on an internal mutex.
type Session struct {
	mu     sync.Mutex
	creds  Credentials
	dialer Dialer
	policy Policy
	conn   *Connection
	logger *logrus.Logger
	now    func() time.Time
}

// NewSession creates a session. It does not connect.
func NewSession(creds Credentials, dialer Dialer, policy Policy, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		creds:  creds,
		dialer: dialer,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the session's time source.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// User returns the configured login name.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.User
}

// Configured reports whether credentials have been set.
func (s *Session) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Host != "" && s.creds.User != ""
}

// Connect tears down any existing connection and opens a fresh, authenticated one.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect()
}

// Disconnect logs out and forgets the connection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropConn()
}

// Reconfigure disconnects and swaps credentials. It does not reconnect.
func (s *Session) Reconfigure(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropConn()
	s.creds = creds
}

// IsConnected is a cheap liveness probe. A connection used within the
// freshness window is trusted as is; an older one is checked with NOOP and
// discarded if that fails.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return false
	}
	now := s.now()
	if s.conn.idle(now) < s.policy.FreshnessWindow {
		return true
	}

	if err := s.conn.transport.Noop(); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"addr":          s.conn.Addr(),
			"last_activity": s.conn.LastActivity().Format(time.RFC3339),
		}).Warn("NOOP failed, discarding IMAP connection")
		s.conn.abandon()
		s.conn = nil
		return false
	}
	s.conn.touch(s.now())
	return true
}

// ListFolders lists all mailbox names.
func (s *Session) ListFolders() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return run(s, "list", func(c *Connection) ([]string, error) {
		return c.transport.List()
	})
}

// SelectFolder makes folder the selected one and returns its message count.
// Nothing is sent if folder is already selected on the live connection.
func (s *Session) SelectFolder(folder string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return run(s, "select", func(c *Connection) (uint32, error) {
		return c.selectFolder(folder)
	})
}

// Search runs a native UID SEARCH query in folder and returns the matching
// ids in server order.
func (s *Session) Search(query, folder string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder == "" {
		folder = DefaultFolder
	}
	return run(s, "search", func(c *Connection) ([]string, error) {
		if _, err := c.selectFolder(folder); err != nil {
			return nil, err
		}
		return c.transport.UIDSearch(query)
	})
}

// FetchHeaders returns summaries of at most limit messages taken from the
// end of uids, newest first. A limit of zero or less fetches all of them.
func (s *Session) FetchHeaders(uids []string, limit int) ([]types.MessageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	wanted := make([]string, len(uids))
	for i, uid := range uids {
		wanted[len(uids)-1-i] = uid
	}

	return run(s, "fetch headers", func(c *Connection) ([]types.MessageSummary, error) {
		if err := s.ensureSelected(c); err != nil {
			return nil, err
		}
		if len(wanted) == 0 {
			return []types.MessageSummary{}, nil
		}

		raws, err := c.transport.FetchHeaderFields(wanted)
		if err != nil {
			return nil, err
		}
		byUID := make(map[string]RawHeader, len(raws))
		for _, raw := range raws {
			byUID[raw.UID] = raw
		}

		summaries := make([]types.MessageSummary, 0, len(wanted))
		for _, uid := range wanted {
			raw, ok := byUID[uid]
			if !ok {
				continue
			}
			summary, err := summaryFromRaw(raw)
			if err != nil {
				s.logger.WithError(err).WithField("uid", uid).Warn("Skipping message with unreadable headers")
				continue
			}
			summaries = append(summaries, summary)
		}
		return summaries, nil
	})
}

// FetchFullMessage returns the raw RFC 5322 bytes of uid in the selected folder.
func (s *Session) FetchFullMessage(uid string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return run(s, "fetch message", func(c *Connection) ([]byte, error) {
		if err := s.ensureSelected(c); err != nil {
			return nil, err
		}
		return c.transport.FetchMessage(uid)
	})
}

// FetchFlags returns the flags of uid in the selected folder.
func (s *Session) FetchFlags(uid string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return run(s, "fetch flags", func(c *Connection) ([]string, error) {
		if err := s.ensureSelected(c); err != nil {
			return nil, err
		}
		return c.transport.FetchFlags(uid)
	})
}

// run is the shared path of every stateful operation: make sure a usable
// connection exists, then execute op through RetryOnce so that a
// connection-class failure costs one reconnect and one retry. The caller
// holds s.mu.
func run[T any](s *Session, op string, fn func(*Connection) (T, error)) (T, error) {
	if err := s.ensureConnected(); err != nil {
		var zero T
		return zero, err
	}

	attempt := func() (T, error) {
		if s.conn == nil {
			var zero T
			return zero, ErrNotConnected
		}
		c := s.conn
		result, err := fn(c)
		if err != nil {
			return result, err
		}
		c.touch(s.now())
		return result, nil
	}

	result, err := RetryOnce(attempt, IsConnectionError, func(cause error) error {
		s.logger.WithError(cause).WithFields(logrus.Fields{
			"op":   op,
			"host": s.creds.Host,
		}).Warn("IMAP operation failed, reconnecting")
		return s.reconnectRestoring()
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ensureConnected connects if there is no connection and reconnects ahead
// of time when the connection has idled past the refresh window.
func (s *Session) ensureConnected() error {
	if s.conn == nil {
		return s.connect()
	}
	if idle := s.conn.idle(s.now()); idle > s.policy.RefreshWindow {
		s.logger.WithFields(logrus.Fields{
			"addr":          s.conn.Addr(),
			"last_activity": s.conn.LastActivity().Format(time.RFC3339),
			"idle":          idle.Round(time.Second).String(),
		}).Info("IMAP connection stale, reconnecting")
		return s.connect()
	}
	return nil
}

// ensureSelected selects DefaultFolder when nothing is selected on c.
func (s *Session) ensureSelected(c *Connection) error {
	if c.Selected() != "" {
		return nil
	}
	_, err := c.selectFolder(DefaultFolder)
	return err
}

// reconnectRestoring rebuilds the connection and, if a folder was selected
// on the old one, selects it again on the new one.
func (s *Session) reconnectRestoring() error {
	folder := ""
	if s.conn != nil {
		folder = s.conn.Selected()
	}
	if err := s.connect(); err != nil {
		return err
	}
	if folder != "" {
		if _, err := s.conn.reselect(folder); err != nil {
			return fmt.Errorf("failed to restore folder %s: %w", folder, err)
		}
	}
	return nil
}

func (s *Session) connect() error {
	s.dropConn()

	if s.dialer == nil {
		return &ConnectError{Addr: fmt.Sprintf("%s:%d", s.creds.Host, s.creds.Port), Err: fmt.Errorf("no dialer configured")}
	}
	t, err := s.dialer.Dial(s.creds.Host, s.creds.Port, s.creds.User, s.creds.Secret)
	if err != nil {
		return err
	}

	s.conn = newConnection(s.creds.Host, s.creds.Port, s.creds.User, t, s.now())
	s.logger.WithFields(logrus.Fields{
		"addr": s.conn.Addr(),
		"user": maskUser(s.creds.User),
	}).Info("IMAP connected")
	return nil
}

func (s *Session) dropConn() {
	if s.conn != nil {
		s.conn.close()
		s.conn = nil
	}
}

// maskUser keeps the first character of the local part of an address.
func maskUser(user string) string {
	at := strings.IndexByte(user, '@')
	if at <= 1 {
		return user
	}
	return user[:1] + strings.Repeat("*", at-1) + user[at:]
}
