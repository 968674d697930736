package email

import (
	"fmt"
	"time"
)

// RawHeader is the undecoded header block and flags of one message as
// returned by a header fetch.
type RawHeader struct {
	UID    string
	Header []byte
	Flags  []string
}

// Transport is a single authenticated protocol session. Message ids are
// opaque per-folder UIDs.
type Transport interface {
	Noop() error
	List() ([]string, error)
	Select(folder string) (uint32, error)
	UIDSearch(query string) ([]string, error)
	FetchHeaderFields(uids []string) ([]RawHeader, error)
	FetchMessage(uid string) ([]byte, error)
	FetchFlags(uid string) ([]string, error)
	Logout() error
	Close() error
}

// Dialer opens and authenticates a Transport.
type Dialer interface {
	Dial(host string, port int, user, secret string) (Transport, error)
}

// Connection is one live protocol session together with the state that is
// only meaningful for that session: the selected folder and when the server
// was last heard from. A Connection is never reused after it is discarded.
type Connection struct {
	Host string
	Port int
	User string

	transport    Transport
	selected     string
	selectedSize uint32
	lastActivity time.Time
}

func newConnection(host string, port int, user string, t Transport, now time.Time) *Connection {
	return &Connection{
		Host:         host,
		Port:         port,
		User:         user,
		transport:    t,
		lastActivity: now,
	}
}

// Addr returns host:port.
func (c *Connection) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Selected returns the folder selected on this connection, or "".
func (c *Connection) Selected() string {
	return c.selected
}

// LastActivity returns the time of the last successful round trip.
func (c *Connection) LastActivity() time.Time {
	return c.lastActivity
}

func (c *Connection) idle(now time.Time) time.Duration {
	return now.Sub(c.lastActivity)
}

func (c *Connection) touch(now time.Time) {
	c.lastActivity = now
}

// selectFolder issues SELECT unless folder is already selected here.
func (c *Connection) selectFolder(folder string) (uint32, error) {
	if c.selected == folder {
		return c.selectedSize, nil
	}
	return c.reselect(folder)
}

// reselect issues SELECT unconditionally.
func (c *Connection) reselect(folder string) (uint32, error) {
	n, err := c.transport.Select(folder)
	if err != nil {
		c.selected = ""
		return 0, err
	}
	c.selected = folder
	c.selectedSize = n
	return n, nil
}

// close logs out and drops the transport. Logout errors are ignored: the
// connection is being thrown away either way.
func (c *Connection) close() {
	if c.transport == nil {
		return
	}
	_ = c.transport.Logout()
	_ = c.transport.Close()
	c.transport = nil
	c.selected = ""
}

// abandon drops the transport without a logout round trip.
func (c *Connection) abandon() {
	if c.transport == nil {
		return
	}
	_ = c.transport.Close()
	c.transport = nil
	c.selected = ""
}
