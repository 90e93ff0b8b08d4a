package client

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind classifies client failures.
type ErrorKind int

const (
	ConnectFailure ErrorKind = iota
	DNSFailure
	WriteFailure
	ReadFailure
)

// Error is returned by Fetch. Its message is what the command prints.
type Error struct {
	Kind ErrorKind
	Host string
	Port int
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ConnectFailure:
		if errors.Is(e.Err, syscall.ECONNREFUSED) {
			return fmt.Sprintf("Couldn't connect to %s:%d.", e.Host, e.Port)
		}
		return fmt.Sprintf("connect to %s:%d: %v", e.Host, e.Port, e.Err)
	case DNSFailure:
		return fmt.Sprintf("Invalid host name or IP address '%s'.", e.Host)
	case WriteFailure:
		return fmt.Sprintf("write request: %v", e.Err)
	case ReadFailure:
		return fmt.Sprintf("read response: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (c *Client) dialError(err error) *Error {
	kind := ConnectFailure

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		kind = DNSFailure
	}

	return &Error{Kind: kind, Host: c.host, Port: c.port, Err: err}
}
