package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"

	"github.com/HMasataka/logging"
	"github.com/HMasataka/statictcp/internal/docroot"
	"github.com/HMasataka/statictcp/internal/protocol"
)

type HandlerOptions struct {
	ReadBufferSize int
	Logger         *slog.Logger
}

func DefaultHandlerOptions() HandlerOptions {
	return HandlerOptions{
		ReadBufferSize: protocol.MaxRequestSize,
		Logger:         slog.Default(),
	}
}

var _ ConnHandler = (*Handler)(nil)

// Handler serves one request per connection from a document root.
// It holds no mutable state and is shared by all connections.
type Handler struct {
	resolver docroot.Resolver
	options  HandlerOptions
}

func NewHandler(resolver docroot.Resolver, options HandlerOptions) *Handler {
	defaults := DefaultHandlerOptions()
	if options.ReadBufferSize <= 0 {
		options.ReadBufferSize = defaults.ReadBufferSize
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	return &Handler{
		resolver: resolver,
		options:  options,
	}
}

// Handle reads one request, writes at most one response, and always closes
// conn. Failures stay inside this call.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	logger := h.options.Logger.With(slog.String("peer", peer))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling request", slog.Any("panic", r))
		}
		conn.Close()
	}()

	err := h.serve(ctx, conn, logger)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrEmptyRequest), errors.Is(err, protocol.ErrMalformedRequestLine):
		logger.Debug("request abandoned", slog.String("reason", err.Error()))
	default:
		logger.Error("error handling request", slog.String("error", err.Error()))
	}
}

func (h *Handler) serve(ctx context.Context, conn io.ReadWriter, logger *slog.Logger) error {
	buf := make([]byte, h.options.ReadBufferSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return protocol.ErrEmptyRequest
		}
		return fmt.Errorf("read request: %w", err)
	}

	line, err := protocol.ParseRequestLine(buf[:n])
	if err != nil {
		return err
	}

	target := protocol.DecodeTarget(line.Target)

	path, err := h.resolver.Resolve(target)
	if errors.Is(err, docroot.ErrNotFound) {
		return h.notFound(ctx, conn, logger, target)
	}
	if err != nil {
		return fmt.Errorf("resolve %q: %w", target, err)
	}

	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// removed between Resolve and ReadFile
		return h.notFound(ctx, conn, logger, target)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	contentType := docroot.ContentType(path)
	if err := protocol.WriteOK(conn, contentType, body); err != nil {
		return err
	}

	h.logServed(ctx, logger, target, 200, len(body))
	return nil
}

func (h *Handler) notFound(ctx context.Context, conn io.Writer, logger *slog.Logger, target string) error {
	if err := protocol.WriteNotFound(conn); err != nil {
		return err
	}

	h.logServed(ctx, logger, target, 404, len(protocol.NotFoundBody))
	return nil
}

func (h *Handler) logServed(ctx context.Context, logger *slog.Logger, target string, status, size int) {
	level := slog.LevelDebug
	if logging.HasLoggingContext(ctx) {
		level = slog.LevelInfo
	}

	logger.Log(ctx, level, "request served",
		slog.String("target", target),
		slog.Int("status", status),
		slog.Int("bytes", size),
	)
}
