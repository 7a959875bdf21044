// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

// Package httpapi exposes the authentication core over HTTP. It owns cookie
// handling, request validation, and the mapping from domain error codes to
// status codes; all authentication decisions live in internal/auth.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/internal/observability"
	"github.com/keyline/keyline/pkg/errutil"
)

// ScopeDirectory resolves whether a scope exists. Implementations are owned
// by the tenant-persistence layer; the boundary only needs existence checks.
type ScopeDirectory interface {
	// ScopeExists reports whether the scope is known. A storage failure is an
	// error; an unknown scope is (false, nil).
	ScopeExists(ctx context.Context, scope auth.Scope) (bool, error)
}

// ResetNotifier delivers a plaintext reset token to the account holder.
// Delivery transport (email, SMS) lives outside this module.
type ResetNotifier interface {
	SendResetToken(ctx context.Context, ref auth.AccountRef, token string, expiresAt time.Time) error
}

// LogNotifier is a development-only ResetNotifier that logs token issuance
// without the token value.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendResetToken logs that a token was issued. The token itself never hits
// the log.
func (n LogNotifier) SendResetToken(_ context.Context, ref auth.AccountRef, _ string, expiresAt time.Time) error {
	n.Logger.Info("password reset token issued",
		slog.String("account_type", string(ref.Type)),
		slog.String("account_id", ref.ID.String()),
		slog.Time("expires_at", expiresAt))
	return nil
}

// Deps carries the collaborators a Server needs.
type Deps struct {
	Auth      *auth.Service
	Resets    *auth.PasswordResetService
	Directory auth.AccountDirectory
	Scopes    ScopeDirectory
	Updater   auth.PasswordUpdater
	Notifier  ResetNotifier
	Cookies   *CookieCodec
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Server is the HTTP boundary for the authentication core.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	auth      *auth.Service
	resets    *auth.PasswordResetService
	directory auth.AccountDirectory
	scopes    ScopeDirectory
	updater   auth.PasswordUpdater
	notifier  ResetNotifier
	cookies   *CookieCodec
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewServer creates the HTTP server. Metrics and Notifier are optional; every
// other dependency is required.
func NewServer(addr string, deps Deps) (*Server, error) {
	if addr == "" {
		return nil, oops.Code("INVALID_CONFIG").Errorf("listen address required")
	}
	if deps.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if deps.Resets == nil {
		return nil, oops.Errorf("password reset service is required")
	}
	if deps.Directory == nil {
		return nil, oops.Errorf("account directory is required")
	}
	if deps.Scopes == nil {
		return nil, oops.Errorf("scope directory is required")
	}
	if deps.Updater == nil {
		return nil, oops.Errorf("password updater is required")
	}
	if deps.Cookies == nil {
		return nil, oops.Errorf("cookie codec is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	s := &Server{
		addr:      addr,
		auth:      deps.Auth,
		resets:    deps.Resets,
		directory: deps.Directory,
		scopes:    deps.Scopes,
		updater:   deps.Updater,
		notifier:  notifier,
		cookies:   deps.Cookies,
		metrics:   deps.Metrics,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/logout", s.handleLogout)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Get("/session", s.handleGetSession)
			r.Get("/sessions", s.handleListSessions)
		})
	})

	s.httpServer = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the configured router. Used by handler tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. Returns a channel that receives the terminal serve
// error, or nil on clean shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("SERVER_ALREADY_RUNNING").Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("SERVER_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		serveErr := s.httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		} else {
			errCh <- nil
		}
		close(errCh)
	}()

	s.logger.Info("http server started", slog.String("addr", s.Addr()))
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.Code("SERVER_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) recordValidation(result string) {
	if s.metrics != nil {
		s.metrics.SessionValidationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Server) recordValidationError(err error) {
	if errutil.HasCode(err, "SESSION_NOT_FOUND") {
		s.recordValidation("not_found")
	} else {
		s.recordValidation("error")
	}
}

func (s *Server) recordRevoked(trigger string, count int64) {
	if s.metrics != nil && count > 0 {
		s.metrics.SessionsRevokedTotal.WithLabelValues(trigger).Add(float64(count))
	}
}

func (s *Server) recordReset(stage string) {
	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.WithLabelValues(stage).Inc()
	}
}

// parseULID wraps ulid.Parse with a BAD_REQUEST code for boundary use.
func parseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("BAD_REQUEST").Errorf("invalid ULID: %q", s)
	}
	return id, nil
}
