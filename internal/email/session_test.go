package email

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	id      int
	dead    bool
	folders []string
	sizes   map[string]uint32
	search  []string
	headers map[string]RawHeader
	raw     map[string][]byte

	noops     int
	selects   []string
	searches  []string
	fetched   [][]string
	loggedOut bool
	closed    bool

	// failNext makes the next N operations fail with failErr.
	failNext int
	failErr  error
}

func (f *fakeTransport) fail() error {
	if f.dead {
		return &TransientError{Op: "fake", Err: io.EOF}
	}
	if f.failNext > 0 {
		f.failNext--
		return f.failErr
	}
	return nil
}

func (f *fakeTransport) Noop() error {
	f.noops++
	return f.fail()
}

func (f *fakeTransport) List() ([]string, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.folders, nil
}

func (f *fakeTransport) Select(folder string) (uint32, error) {
	f.selects = append(f.selects, folder)
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.sizes[folder], nil
}

func (f *fakeTransport) UIDSearch(query string) ([]string, error) {
	f.searches = append(f.searches, query)
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.search, nil
}

func (f *fakeTransport) FetchHeaderFields(uids []string) ([]RawHeader, error) {
	f.fetched = append(f.fetched, uids)
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []RawHeader
	// Servers answer in ascending UID order regardless of request order.
	for i := len(uids) - 1; i >= 0; i-- {
		if h, ok := f.headers[uids[i]]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeTransport) FetchMessage(uid string) ([]byte, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	raw, ok := f.raw[uid]
	if !ok {
		return nil, fmt.Errorf("message UID %s not found", uid)
	}
	return raw, nil
}

func (f *fakeTransport) FetchFlags(uid string) ([]string, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.headers[uid].Flags, nil
}

func (f *fakeTransport) Logout() error {
	f.loggedOut = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	dials      int
	err        error
	transports []*fakeTransport
	prepare    func(*fakeTransport)
}

func (d *fakeDialer) Dial(host string, port int, user, secret string) (Transport, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	t := &fakeTransport{id: d.dials, sizes: map[string]uint32{"INBOX": 3}}
	if d.prepare != nil {
		d.prepare(t)
	}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) last() *fakeTransport {
	return d.transports[len(d.transports)-1]
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSession(d *fakeDialer) (*Session, *testClock) {
	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSession(Credentials{Host: "imap.example.com", Port: 993, User: "bob@example.com", Secret: "pw"}, d, DefaultPolicy(), quietLogger())
	s.SetClock(clock.now)
	return s, clock
}

func header(uid, subject, from, date string, flags ...string) RawHeader {
	block := fmt.Sprintf("Subject: %s\r\nFrom: %s\r\nDate: %s\r\n\r\n", subject, from, date)
	return RawHeader{UID: uid, Header: []byte(block), Flags: flags}
}

func TestIsConnectedWithoutConnection(t *testing.T) {
	s, _ := newTestSession(&fakeDialer{})
	assert.False(t, s.IsConnected())
}

func TestIsConnectedTrustsFreshConnection(t *testing.T) {
	d := &fakeDialer{}
	s, clock := newTestSession(d)
	require.NoError(t, s.Connect())

	clock.advance(4 * time.Minute)
	assert.True(t, s.IsConnected())
	assert.Equal(t, 0, d.last().noops)
}

func TestIsConnectedProbesStaleConnection(t *testing.T) {
	d := &fakeDialer{}
	s, clock := newTestSession(d)
	require.NoError(t, s.Connect())

	clock.advance(6 * time.Minute)
	assert.True(t, s.IsConnected())
	assert.Equal(t, 1, d.last().noops)

	// The successful NOOP refreshed the activity timestamp.
	clock.advance(time.Minute)
	assert.True(t, s.IsConnected())
	assert.Equal(t, 1, d.last().noops)
}

func TestIsConnectedDiscardsDeadConnection(t *testing.T) {
	d := &fakeDialer{}
	s, clock := newTestSession(d)
	require.NoError(t, s.Connect())

	clock.advance(6 * time.Minute)
	d.last().dead = true

	assert.False(t, s.IsConnected())
	assert.True(t, d.last().closed)
	assert.False(t, d.last().loggedOut)
	assert.False(t, s.IsConnected())
	assert.Equal(t, 1, d.last().noops)
}

func TestConnectReplacesExistingConnection(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())
	first := d.last()

	require.NoError(t, s.Connect())
	assert.Equal(t, 2, d.dials)
	assert.True(t, first.loggedOut)
	assert.True(t, first.closed)
}

func TestConnectAuthFailure(t *testing.T) {
	d := &fakeDialer{err: &AuthError{User: "bob@example.com", Err: errors.New("NO [AUTHENTICATIONFAILED]")}}
	s, _ := newTestSession(d)

	err := s.Connect()
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, s.IsConnected())
}

func TestOperationDoesNotRetryAuthFailure(t *testing.T) {
	d := &fakeDialer{err: &AuthError{User: "bob@example.com", Err: errors.New("rejected")}}
	s, _ := newTestSession(d)

	_, err := s.ListFolders()
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, d.dials)
}

func TestReconfigureDisconnectsWithoutReconnecting(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())

	s.Reconfigure(Credentials{Host: "imap.other.org", Port: 993, User: "carol@other.org", Secret: "x"})
	assert.True(t, d.last().closed)
	assert.Equal(t, 1, d.dials)
	assert.False(t, s.IsConnected())
	assert.Equal(t, "carol@other.org", s.User())
}

func TestRetrySucceedsAfterOneReconnect(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) { t.folders = []string{"INBOX", "Archive"} }}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())
	d.last().failNext = 1
	d.last().failErr = &TransientError{Op: "list", Err: errors.New("broken pipe")}

	folders, err := s.ListFolders()
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "Archive"}, folders)
	assert.Equal(t, 2, d.dials)
}

func TestRetryFailsAfterExactlyOneReconnect(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) {
		t.failNext = 1
		t.failErr = errors.New("connection reset by peer")
	}}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())

	_, err := s.ListFolders()
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "retry after reconnect")
	assert.Equal(t, 2, d.dials)
}

func TestNonConnectionErrorIsNotRetried(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())
	d.last().failNext = 1
	d.last().failErr = errors.New("BAD could not parse command")

	_, err := s.Search("ALL", "INBOX")
	require.Error(t, err)
	assert.Equal(t, 1, d.dials)
}

func TestSelectFolderIsCachedPerConnection(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSession(d)
	require.NoError(t, s.Connect())

	n, err := s.SelectFolder("INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	n, err = s.SelectFolder("INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []string{"INBOX"}, d.last().selects)

	require.NoError(t, s.Connect())
	_, err = s.SelectFolder("INBOX")
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX"}, d.last().selects)
	assert.Equal(t, 2, d.dials)
}

func TestReconnectRestoresSelectedFolder(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) { t.search = []string{"7"} }}
	s, _ := newTestSession(d)
	_, err := s.SelectFolder("Archive")
	require.NoError(t, err)

	first := d.last()
	first.failNext = 1
	first.failErr = &TransientError{Op: "flags", Err: io.ErrUnexpectedEOF}

	_, err = s.FetchFlags("7")
	require.NoError(t, err)

	second := d.last()
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"Archive"}, second.selects)
}

func TestProactiveRefreshAfterIdle(t *testing.T) {
	d := &fakeDialer{}
	s, clock := newTestSession(d)
	require.NoError(t, s.Connect())

	clock.advance(7 * time.Minute)
	_, err := s.ListFolders()
	require.NoError(t, err)
	assert.Equal(t, 1, d.dials)

	clock.advance(9 * time.Minute)
	_, err = s.ListFolders()
	require.NoError(t, err)
	assert.Equal(t, 2, d.dials)
}

func TestConnectionActivityIsLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	d := &fakeDialer{}
	s := NewSession(Credentials{Host: "imap.example.com", Port: 993, User: "bob@example.com", Secret: "pw"}, d, DefaultPolicy(), logger)
	s.SetClock(clock.now)

	require.NoError(t, s.Connect())
	assert.Equal(t, "imap.example.com:993", hook.LastEntry().Data["addr"])
	assert.Equal(t, clock.t, s.conn.LastActivity())

	clock.advance(2 * time.Minute)
	_, err := s.ListFolders()
	require.NoError(t, err)
	assert.Equal(t, clock.t, s.conn.LastActivity())
	used := clock.t

	clock.advance(6 * time.Minute)
	d.last().dead = true
	assert.False(t, s.IsConnected())

	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "imap.example.com:993", entry.Data["addr"])
	assert.Equal(t, used.Format(time.RFC3339), entry.Data["last_activity"])
}

func TestSearchSelectsFolderAndDefaultsToInbox(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) { t.search = []string{"1", "2"} }}
	s, _ := newTestSession(d)

	uids, err := s.Search(`(FROM "alice@example.com")`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, uids)
	assert.Equal(t, []string{"INBOX"}, d.last().selects)
	assert.Equal(t, []string{`(FROM "alice@example.com")`}, d.last().searches)

	_, err = s.Search("ALL", "Sent")
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "Sent"}, d.last().selects)
}

func TestFetchHeadersConnectsSelectsInboxNewestFirst(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) {
		t.headers = map[string]RawHeader{
			"10": header("10", "one", "a@example.com", "Mon, 3 Mar 2025 10:00:00 +0000"),
			"11": header("11", "two", "b@example.com", "Mon, 3 Mar 2025 11:00:00 +0000", `\Seen`),
			"12": header("12", "three", "c@example.com", "Mon, 3 Mar 2025 12:00:00 +0000"),
		}
	}}
	s, _ := newTestSession(d)

	summaries, err := s.FetchHeaders([]string{"10", "11", "12"}, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, d.dials)
	assert.Equal(t, []string{"INBOX"}, d.last().selects)
	assert.Equal(t, [][]string{{"12", "11"}}, d.last().fetched)
	require.Len(t, summaries, 2)
	assert.Equal(t, "12", summaries[0].UID)
	assert.Equal(t, "three", summaries[0].Subject)
	assert.False(t, summaries[0].IsRead)
	assert.Equal(t, "11", summaries[1].UID)
	assert.True(t, summaries[1].IsRead)
}

func TestFetchHeadersWithoutLimitAndEmptyInput(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) {
		t.headers = map[string]RawHeader{
			"1": header("1", "a", "x@example.com", "d"),
			"2": header("2", "b", "y@example.com", "d"),
		}
	}}
	s, _ := newTestSession(d)

	summaries, err := s.FetchHeaders([]string{"1", "2"}, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2", summaries[0].UID)

	summaries, err = s.FetchHeaders(nil, 20)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Len(t, d.last().fetched, 1)
}

func TestFetchHeadersDecodesEncodedWords(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) {
		t.headers = map[string]RawHeader{
			"5": {UID: "5", Header: []byte("Subject: =?UTF-8?B?SGVsbG8=?= =?UTF-8?B?IFdvcmxk?=\r\nFrom: =?UTF-8?Q?Jos=C3=A9?= <jose@example.com>\r\n")},
			"6": {UID: "6", Header: []byte("From: nobody@example.com\r\n")},
		}
	}}
	s, _ := newTestSession(d)

	summaries, err := s.FetchHeaders([]string{"5", "6"}, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, noSubject, summaries[0].Subject)
	assert.Equal(t, "Hello World", summaries[1].Subject)
	assert.Equal(t, "José <jose@example.com>", summaries[1].Sender)
}

func TestFetchFullMessageUsesSelectedFolder(t *testing.T) {
	d := &fakeDialer{prepare: func(t *fakeTransport) {
		t.raw = map[string][]byte{"9": []byte("Subject: hi\r\n\r\nbody")}
	}}
	s, _ := newTestSession(d)
	_, err := s.SelectFolder("Work")
	require.NoError(t, err)

	raw, err := s.FetchFullMessage("9")
	require.NoError(t, err)
	assert.Equal(t, "Subject: hi\r\n\r\nbody", string(raw))
	assert.Equal(t, []string{"Work"}, d.last().selects)
}

func TestConnectWithoutDialer(t *testing.T) {
	s := NewSession(Credentials{Host: "h", Port: 993}, nil, DefaultPolicy(), quietLogger())
	err := s.Connect()
	require.Error(t, err)
	assert.True(t, IsConnectError(err))
}

func TestMaskUser(t *testing.T) {
	assert.Equal(t, "b**@example.com", maskUser("bob@example.com"))
	assert.Equal(t, "a@example.com", maskUser("a@example.com"))
	assert.Equal(t, "plain", maskUser("plain"))
}
