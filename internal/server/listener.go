package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/HMasataka/statictcp/pkg/retry"
)

// ConnHandler processes exactly one accepted connection and closes it.
type ConnHandler interface {
	Handle(ctx context.Context, conn net.Conn)
}

const (
	acceptBaseBackoff = 5 * time.Millisecond
	acceptMaxBackoff  = time.Second
)

// Listener owns the bound socket and runs the accept loop. Every accepted
// connection gets its own goroutine; there is no pool and no upper bound.
type Listener struct {
	ln      net.Listener
	handler ConnHandler
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Listen binds a TCP socket with SO_REUSEADDR. A failure is returned as
// *BindError.
func Listen(ctx context.Context, address string, handler ConnHandler, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, newBindError(address, err)
	}

	return &Listener{
		ln:      ln,
		handler: handler,
		logger:  logger,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// URL returns the listening URL.
func (l *Listener) URL() string {
	return "http://" + l.ln.Addr().String()
}

// Run accepts connections until ctx is done or the listener is closed, then
// returns nil. In-flight handlers are neither waited on nor cancelled.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.Close()
	})
	defer stop()

	// handlers outlive the accept loop
	connCtx := context.WithoutCancel(ctx)

	var delay int
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			// e.g. EMFILE; back off instead of spinning
			backoff := retry.Backoff(delay, acceptBaseBackoff, acceptMaxBackoff)
			delay++
			l.logger.Warn("accept failed", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		delay = 0

		go l.handler.Handle(connCtx, conn)
	}
}

// Close closes the listening socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}
