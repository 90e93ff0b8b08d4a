package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/HMasataka/statictcp/pkg/retry"
	"github.com/gammazero/workerpool"
	"github.com/samber/lo"
)

type Options struct {
	Retry       retry.Config
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Retry:       retry.DefaultConfig(),
		Concurrency: 4,
	}
}

// Client issues one GET per connection and reads the raw response until
// the server closes.
type Client struct {
	host    string
	port    int
	options Options
	dialer  net.Dialer
}

func New(host string, port int, options Options) *Client {
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}

	return &Client{
		host:    host,
		port:    port,
		options: options,
	}
}

// Address returns host:port.
func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Request returns the request bytes sent for filename.
func (c *Client) Request(filename string) []byte {
	return []byte(fmt.Sprintf("GET /%s HTTP/1.1\r\nHost: %s:%d\r\nConnection: close\r\n\r\n", filename, c.host, c.port))
}

// Fetch requests filename and returns the raw response bytes.
func (c *Client) Fetch(ctx context.Context, filename string) ([]byte, error) {
	var conn net.Conn
	err := retry.Do(ctx, c.options.Retry, func(int) error {
		var err error
		conn, err = c.dialer.DialContext(ctx, "tcp", c.Address())
		return err
	})
	if err != nil {
		return nil, c.dialError(err)
	}
	defer conn.Close()

	if _, err := conn.Write(c.Request(filename)); err != nil {
		return nil, &Error{Kind: WriteFailure, Host: c.host, Port: c.port, Err: err}
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		return response, &Error{Kind: ReadFailure, Host: c.host, Port: c.port, Err: err}
	}

	return response, nil
}

// Result is the outcome of one Fetch in FetchAll.
type Result struct {
	Filename string
	Response []byte
	Err      error
}

// FetchAll fetches every filename with at most Options.Concurrency open
// connections. Results are in the order of filenames.
func (c *Client) FetchAll(ctx context.Context, filenames []string) []Result {
	results := lo.Map(filenames, func(name string, _ int) Result {
		return Result{Filename: name}
	})

	wp := workerpool.New(c.options.Concurrency)
	for i := range results {
		wp.Submit(func() {
			results[i].Response, results[i].Err = c.Fetch(ctx, results[i].Filename)
		})
	}
	wp.StopWait()

	return results
}
