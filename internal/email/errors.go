package email

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrNotConnected is returned when an operation needs a live session and
// there is none.
var ErrNotConnected = errors.New("not connected to email server")

// AuthError indicates that the server rejected the credentials.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectError indicates that a transport session could not be established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to IMAP server %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransientError marks a mid-operation failure of the connection itself
// (abort, reset, broken pipe). Operations failing this way are retried once
// on a fresh connection.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: connection lost: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsConnectError reports whether err (or any error in its chain) is a ConnectError.
func IsConnectError(err error) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr)
}

// connectionMarkers are lower-cased fragments of error texts that only show up
// when the underlying connection is gone.
var connectionMarkers = []string{
	"connection closed",
	"use of closed network connection",
	"connection reset",
	"broken pipe",
	"connection aborted",
	"unexpected eof",
	"* bye",
	"logged out",
	"i/o timeout",
}

// IsConnectionError classifies err as connection-class: the operation failed
// because the transport died, not because the server refused the command.
// Authentication failures are never connection-class.
func IsConnectionError(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
