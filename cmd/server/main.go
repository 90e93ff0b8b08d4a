package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HMasataka/statictcp/internal/config"
	"github.com/HMasataka/statictcp/internal/docroot"
	"github.com/HMasataka/statictcp/internal/server"
	"github.com/jessevdk/go-flags"
)

type Options struct {
	Args struct {
		Port int `positional-arg-name:"port" description:"TCP port to listen on" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "<port>"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		return 1
	}
	if len(rest) > 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s <port>\n", parser.Name)
		return 1
	}
	port := opts.Args.Port
	if port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port: %d\n", port)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := newLogger(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	root, err := docroot.Getwd(cfg.Server.DefaultResource)
	if err != nil {
		slog.Error("failed to resolve document root", slog.String("error", err.Error()))
		return 1
	}

	handler := server.NewHandler(root, server.HandlerOptions{
		ReadBufferSize: cfg.Server.ReadBufferSize,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := server.Listen(ctx, cfg.Address(port), handler, logger)
	if err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) && bindErr.Kind == server.AddressInUse {
			fmt.Fprintf(os.Stderr, "Error binding to port %d: %v. It might already be in use.\n", port, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error binding to port %d: %v\n", port, err)
		}
		return 1
	}
	defer ln.Close()

	fmt.Printf("The server is running on %s\n", ln.URL())
	slog.Info("serving", slog.String("addr", ln.Addr().String()), slog.String("document_root", root.Dir()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down server...", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := ln.Run(ctx); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		return 1
	}

	return 0
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, options)), nil
	}
	return slog.New(slog.NewJSONHandler(w, options)), nil
}
