// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyline/keyline/internal/auth"
	authpg "github.com/keyline/keyline/internal/auth/postgres"
	"github.com/keyline/keyline/internal/config"
	"github.com/keyline/keyline/internal/httpapi"
	"github.com/keyline/keyline/internal/logging"
	"github.com/keyline/keyline/internal/observability"
	"github.com/keyline/keyline/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the HTTP authentication server along with the
observability endpoint for metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	// Flag names mirror config keys so posflag can layer them over the file.
	cmd.Flags().String("server.addr", "", "HTTP listen address")
	cmd.Flags().String("server.metrics_addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().Duration("auth.session_ttl", 0, "session lifetime")
	cmd.Flags().Duration("auth.reset_ttl", 0, "reset token lifetime")
	cmd.Flags().String("log.format", "", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, cmd *cobra.Command) error {
	logging.SetDefault("keyline", version, cfg.Log.Format)
	logger := slog.Default()

	logger.Info("starting keyline server",
		slog.String("addr", cfg.Server.Addr),
		slog.String("log_format", cfg.Log.Format))

	pool, err := store.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

	sessionRepo := authpg.NewSessionRepository(pool.Pgx())
	resetRepo := authpg.NewPasswordResetRepository(pool.Pgx())
	directory := authpg.NewAccountDirectory(pool.Pgx())
	scopes := authpg.NewScopeDirectory(pool.Pgx())
	hasher := auth.NewArgon2idHasher()

	sessionSvc, err := auth.NewSessionServiceWithLogger(sessionRepo, cfg.Auth.SessionTTL, logger)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetServiceWithLogger(resetRepo, hasher, sessionSvc, cfg.Auth.ResetTTL, logger)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewAuthServiceWithLogger(directory, sessionSvc, hasher, logger)
	if err != nil {
		return err
	}

	cookies, err := httpapi.NewCookieCodec(cfg.Auth.CookieName, cfg.Auth.CookieSecret, cfg.Auth.CookieSecure)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server is optional; readiness tracks database health.
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", slog.String("addr", obsServer.Addr()))
	}

	apiServer, err := httpapi.NewServer(cfg.Server.Addr, httpapi.Deps{
		Auth:      authSvc,
		Resets:    resetSvc,
		Directory: directory,
		Scopes:    scopes,
		Updater:   directory.UpdatePasswordHash,
		Cookies:   cookies,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "http")

	cmd.Println("Keyline server started")
	logger.Info("keyline server ready", slog.String("addr", apiServer.Addr()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", slog.String("error", err.Error()))
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", slog.String("error", err.Error()))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a server reports a terminal
// error, so one failing listener takes the whole process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				slog.String("server", serverName),
				slog.String("error", err.Error()))
			cancel()
		}
	case <-ctx.Done():
	}
}
