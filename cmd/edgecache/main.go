package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/offlinekit/edgecache/gateway"
	"github.com/offlinekit/edgecache/observability"
)

var version = "dev"

// CLI is the top-level command structure for edgecache.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Serve   ServeCmd         `cmd:"" default:"withargs" help:"Run the caching gateway."`
}

// ServeCmd runs the gateway until interrupted.
type ServeCmd struct {
	Config   string `help:"Path to YAML config file." short:"c" type:"existingfile" optional:""`
	Listen   string `help:"HTTP listen address (overrides config)."`
	Upstream string `help:"Upstream base URL (overrides config)."`
	Strategy string `help:"Initial caching strategy (overrides config)."`
	Watch    bool   `help:"Watch the config file and hot-reload the strategy." default:"false"`
	Verbose  bool   `help:"Enable verbose logging to stderr." default:"false"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	cfg, err := gateway.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	if c.Upstream != "" {
		cfg.Upstream = c.Upstream
	}
	if c.Strategy != "" {
		cfg.Router.Strategy = c.Strategy
	}

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, "edgecache")
	if err != nil {
		return fmt.Errorf("serve: setup tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	g, err := gateway.New(ctx, cfg, gateway.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer g.Shutdown()

	if c.Watch && c.Config != "" {
		go func() {
			if err := g.WatchConfig(ctx, c.Config); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: g.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			slog.String("addr", cfg.Listen),
			slog.String("upstream", cfg.Upstream),
			slog.String("strategy", g.Router().Strategy().String()),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("edgecache"),
		kong.Description("Offline-first HTTP caching gateway with selectable strategies."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
