// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyline/keyline/pkg/errutil"
)

// SessionService issues, validates, lists, and revokes sessions.
type SessionService struct {
	sessions SessionRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionService creates a SessionService with the default token TTL.
func NewSessionService(sessions SessionRepository) (*SessionService, error) {
	return NewSessionServiceWithTTL(sessions, DefaultSessionTokenExpiry)
}

// NewSessionServiceWithTTL creates a SessionService with a custom token TTL.
func NewSessionServiceWithTTL(sessions SessionRepository, ttl time.Duration) (*SessionService, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", ttl).Errorf("session TTL must be positive")
	}
	return &SessionService{
		sessions: sessions,
		ttl:      ttl,
		logger:   slog.Default(),
	}, nil
}

// NewSessionServiceWithLogger creates a SessionService with a custom logger.
func NewSessionServiceWithLogger(sessions SessionRepository, ttl time.Duration, logger *slog.Logger) (*SessionService, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewSessionServiceWithTTL(sessions, ttl)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Issue creates and persists a new session for the descriptor.
// Returns the session and the plaintext token. The plaintext token is only
// ever available here; subsequent operations see the hash.
func (s *SessionService) Issue(ctx context.Context, desc SessionDescriptor) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(desc, tokenHash, time.Now().Add(s.ttl))
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Validate looks up a session by its plaintext token and refreshes liveness.
// Absent and expired sessions are indistinguishable to the caller: both
// return the SESSION_NOT_FOUND code. Expired rows are lazily deleted.
func (s *SessionService) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy reclamation; the row is already dead either way.
		if _, delErr := s.sessions.DeleteByTokenHash(ctx, tokenHash); delErr != nil {
			errutil.LogError(s.logger, "failed to delete expired session", delErr)
		}
		return nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
	}

	// Advance liveness. Validation succeeds even if the touch write fails;
	// a revoke racing this call legitimately makes the row vanish.
	now := time.Now()
	if err := s.sessions.TouchLastActive(ctx, session.ID, now); err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "failed to update session last active", err)
		}
	} else if now.After(session.LastActiveAt) {
		// Reflect the touch in the returned session; the store's own
		// monotonicity guard never moves the column backwards.
		session.LastActiveAt = now
	}

	return session, nil
}

// Revoke deletes the session holding the given plaintext token.
// Revoking an absent session is not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return nil
}

// RevokeAll deletes every session for the account regardless of scope and
// returns the number removed.
func (s *SessionService) RevokeAll(ctx context.Context, accountType AccountType, accountID ulid.ULID) (int64, error) {
	count, err := s.sessions.DeleteByAccount(ctx, accountType, accountID)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return count, nil
}

// List returns all active sessions for the account, oldest first.
func (s *SessionService) List(ctx context.Context, accountType AccountType, accountID ulid.ULID) ([]*Session, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountType, accountID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return sessions, nil
}
