package email

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"
	"github.com/emersion/go-imap/responses"
	"github.com/sirupsen/logrus"
)

// headerFields are the header lines fetched for list views.
var headerFields = []string{"SUBJECT", "FROM", "DATE"}

// IMAPDialer dials IMAP over implicit TLS with go-imap.
type IMAPDialer struct {
	// Timeout bounds every command round trip; zero means no timeout.
	Timeout time.Duration
	Logger  *logrus.Logger
}

// Dial connects to host:port and logs in.
func (d *IMAPDialer) Dial(host string, port int, user, secret string) (Transport, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	cl.Timeout = d.Timeout

	if err := cl.Login(user, secret); err != nil {
		_ = cl.Terminate()
		if IsConnectionError(err) {
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		if d.Logger != nil {
			d.Logger.WithField("host", host).Error("IMAP login rejected")
		}
		return nil, &AuthError{User: user, Err: err}
	}

	return &imapTransport{client: cl}, nil
}

// imapTransport adapts a go-imap client to Transport.
type imapTransport struct {
	client *client.Client
}

func (t *imapTransport) Noop() error {
	return t.wrap("noop", t.client.Noop())
}

func (t *imapTransport) List() ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- t.client.List("", "*", mailboxes)
	}()

	var folders []string
	for m := range mailboxes {
		if m.Name != "" {
			folders = append(folders, m.Name)
		}
	}

	if err := <-done; err != nil {
		return nil, t.wrap("list", err)
	}
	return folders, nil
}

func (t *imapTransport) Select(folder string) (uint32, error) {
	mbox, err := t.client.Select(folder, false)
	if err != nil {
		return 0, t.wrap("select "+folder, err)
	}
	return mbox.Messages, nil
}

// rawSearch sends a query already in the protocol's search grammar. An
// ASCII query goes out verbatim. Otherwise the search is declared UTF-8 and
// its strings are handed to go-imap, which sends 8-bit ones as literals.
type rawSearch struct {
	query string
}

func (c *rawSearch) Command() *imap.Command {
	return &imap.Command{
		Name:      "SEARCH",
		Arguments: searchArguments(c.query),
	}
}

func searchArguments(query string) []interface{} {
	if isASCII(query) {
		return []interface{}{imap.RawString(query)}
	}
	args := []interface{}{imap.RawString("CHARSET"), imap.RawString("UTF-8")}
	return append(args, searchFields(query)...)
}

// searchFields splits query into atoms, strings and parenthesized lists.
func searchFields(query string) []interface{} {
	stack := [][]interface{}{nil}
	push := func(v interface{}) {
		top := len(stack) - 1
		stack[top] = append(stack[top], v)
	}

	for i := 0; i < len(query); {
		switch ch := query[i]; {
		case ch == ' ':
			i++
		case ch == '(':
			stack = append(stack, []interface{}{})
			i++
		case ch == ')':
			if len(stack) > 1 {
				list := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				push(list)
			}
			i++
		case ch == '"':
			var sb strings.Builder
			i++
			for i < len(query) && query[i] != '"' {
				if query[i] == '\\' && i+1 < len(query) {
					i++
				}
				sb.WriteByte(query[i])
				i++
			}
			i++
			push(sb.String())
		default:
			j := i
			for j < len(query) && !strings.ContainsRune(" ()\"", rune(query[j])) {
				j++
			}
			push(imap.RawString(query[i:j]))
			i = j
		}
	}

	for len(stack) > 1 {
		list := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(list)
	}
	return stack[0]
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func (t *imapTransport) UIDSearch(query string) ([]string, error) {
	res := new(responses.Search)
	status, err := t.client.Execute(&commands.Uid{Cmd: &rawSearch{query: query}}, res)
	if err != nil {
		return nil, t.wrap("uid search", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}

	uids := make([]string, len(res.Ids))
	for i, id := range res.Ids {
		uids[i] = strconv.FormatUint(uint64(id), 10)
	}
	return uids, nil
}

func (t *imapTransport) FetchHeaderFields(uids []string) ([]RawHeader, error) {
	seqSet, err := uidSet(uids)
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    headerFields,
		},
		Peek: true,
	}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid}

	msgs, err := t.fetch(seqSet, items)
	if err != nil {
		return nil, t.wrap("fetch headers", err)
	}

	raws := make([]RawHeader, 0, len(msgs))
	for _, msg := range msgs {
		body, err := readLiteral(bodyFor(msg, section))
		if err != nil {
			return nil, t.wrap("fetch headers", err)
		}
		raws = append(raws, RawHeader{
			UID:    strconv.FormatUint(uint64(msg.Uid), 10),
			Header: body,
			Flags:  msg.Flags,
		})
	}
	return raws, nil
}

func (t *imapTransport) FetchMessage(uid string) ([]byte, error) {
	seqSet, err := uidSet([]string{uid})
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{}
	msgs, err := t.fetch(seqSet, []imap.FetchItem{section.FetchItem(), imap.FetchUid})
	if err != nil {
		return nil, t.wrap("fetch message", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message UID %s not found", uid)
	}

	raw, err := readLiteral(bodyFor(msgs[0], section))
	if err != nil {
		return nil, t.wrap("fetch message", err)
	}
	return raw, nil
}

func (t *imapTransport) FetchFlags(uid string) ([]string, error) {
	seqSet, err := uidSet([]string{uid})
	if err != nil {
		return nil, err
	}

	msgs, err := t.fetch(seqSet, []imap.FetchItem{imap.FetchFlags, imap.FetchUid})
	if err != nil {
		return nil, t.wrap("fetch flags", err)
	}
	if len(msgs) == 0 {
		return []string{}, nil
	}
	return msgs[0].Flags, nil
}

func (t *imapTransport) Logout() error {
	return t.client.Logout()
}

func (t *imapTransport) Close() error {
	err := t.client.Terminate()
	if errors.Is(err, client.ErrAlreadyLoggedOut) {
		return nil
	}
	return err
}

// fetch runs UID FETCH and collects every message. Bodies must be read
// before the next command, which is why callers consume them immediately.
func (t *imapTransport) fetch(seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- t.client.UidFetch(seqSet, items, messages)
	}()

	var msgs []*imap.Message
	for msg := range messages {
		msgs = append(msgs, msg)
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return msgs, nil
}

// wrap marks connection-class failures so the session retries them.
func (t *imapTransport) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrNotLoggedIn) || errors.Is(err, client.ErrAlreadyLoggedOut) || IsConnectionError(err) {
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func uidSet(uids []string) (*imap.SeqSet, error) {
	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		n, err := strconv.ParseUint(uid, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid UID %q", uid)
		}
		seqSet.AddNum(uint32(n))
	}
	return seqSet, nil
}

// bodyFor finds the literal for section, falling back to any body the
// server returned when it echoes the section name differently.
func bodyFor(msg *imap.Message, section *imap.BodySectionName) imap.Literal {
	if lit := msg.GetBody(section); lit != nil {
		return lit
	}
	for _, lit := range msg.Body {
		if lit != nil {
			return lit
		}
	}
	return nil
}

func readLiteral(lit imap.Literal) ([]byte, error) {
	if lit == nil {
		return []byte{}, nil
	}
	return io.ReadAll(lit)
}
