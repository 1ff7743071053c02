package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pscheid92/leavenotify/internal/adapter/httpserver"
	"github.com/pscheid92/leavenotify/internal/adapter/terminal"
	"github.com/pscheid92/leavenotify/internal/platform/config"
)

var errNotLoggedIn = errors.New("not logged in, run `leavenotify login` first")

func newRunCmd(cfg func() *config.Config) *cobra.Command {
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stay connected and print notifications until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if cmd.Flags().Changed("status-addr") {
				c.StatusAddr = statusAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, c)
		},
	}

	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Status API listen address, empty disables (default from STATUS_ADDR)")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	printer := terminal.NewPrinter(out)

	rt, err := wire(ctx, cfg, out, false)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := rt.shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
	}()

	if !rt.app.Session().Authenticated() {
		return errNotLoggedIn
	}

	rt.app.SubscribeToasts(printer.Toast)
	rt.app.SubscribeNotifications(printer.Notification)
	rt.app.SubscribeConnection(printer.Connection)
	// the persisted session was restored before the printer subscribed
	printer.Connection(rt.app.ConnectionStatus())

	var srv *httpserver.Server
	serverErr := make(chan error, 1)
	if cfg.StatusAddr != "" {
		srv = httpserver.NewServer(cfg.StatusAddr, rt.app, rt.registry, rt.healthChecks)
		go func() { serverErr <- srv.Start() }()
	}

	slog.Info("Running", "user", rt.app.Session().Identity, "status_addr", cfg.StatusAddr)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("status API: %w", err)
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Status API shutdown error", "error", err)
		}
	}
	return runErr
}
