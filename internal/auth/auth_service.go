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

// Service orchestrates login, signout, and session delegation.
type Service struct {
	directory AccountDirectory
	sessions  *SessionService
	hasher    PasswordHasher
	logger    *slog.Logger
}

// NewAuthService creates a new Service.
func NewAuthService(directory AccountDirectory, sessions *SessionService, hasher PasswordHasher) (*Service, error) {
	if directory == nil {
		return nil, oops.Errorf("account directory is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session service is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		directory: directory,
		sessions:  sessions,
		hasher:    hasher,
		logger:    slog.Default(),
	}, nil
}

// NewAuthServiceWithLogger creates a new Service with a custom logger.
func NewAuthServiceWithLogger(directory AccountDirectory, sessions *SessionService, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewAuthService(directory, sessions, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// dummyPasswordHash is used when a lookup misses so password verification
// still runs and response time stays consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates an account within a scope and issues a session.
// Returns the session and its plaintext token.
//
// A missing account, an account without a local credential, and a wrong
// password all produce the same AUTH_INVALID_CREDENTIALS error: the caller
// must not be able to enumerate accounts. The lockout and disabled flags are
// checked only after the password verifies, so neither status leaks
// pre-authentication. Repeated failures trip a temporary lockout.
func (s *Service) Login(ctx context.Context, ident Identifier, password string, scope Scope, userAgent, ipAddress string) (*Session, string, error) {
	if ident.IsZero() {
		return nil, "", oops.Code("AUTH_INVALID_IDENTIFIER").Errorf("identifier is required")
	}

	account, lookupErr := s.directory.FindByIdentifier(ctx, ident, scope)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	accountUsable := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find account by identifier").
				Wrap(lookupErr)
		}
	} else if account.PasswordHash != "" {
		targetHash = account.PasswordHash
		accountUsable = true
	}

	// Always verify (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// A corrupt stored hash is indistinguishable from a wrong password
		// to the caller; surface the same collapsed error.
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identifier or password")
	}

	if !accountUsable || !valid {
		if account != nil {
			// Record the failure only for accounts that exist; the counter
			// write is best effort and never changes the collapsed error.
			s.recordLoginFailure(ctx, account)
		}
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identifier or password")
	}

	// Lockout check runs only after the password verified, so response
	// timing for a locked account matches an unlocked one. Only the
	// timestamp gates here; an expired lockout clears on the next success.
	if account.IsLocked() {
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("lockout_remaining", time.Until(*account.LockedUntil).String()).
			Errorf("account is temporarily locked")
	}

	// Disabled check runs only after the password verified.
	if account.Disabled {
		return nil, "", oops.Code("AUTH_ACCOUNT_DISABLED").Errorf("account is disabled")
	}

	// Success clears the failure counter. Skipped when already clear so the
	// common path costs no extra write.
	if account.FailedAttempts > 0 || account.LockedUntil != nil {
		account.RecordSuccess()
		if err := s.directory.UpdateLoginState(ctx, account.Ref(), account.FailedAttempts, account.LockedUntil); err != nil {
			errutil.LogError(s.logger, "failed to reset login failure state", err)
		}
	}

	session, token, err := s.sessions.Issue(ctx, SessionDescriptor{
		AccountType: account.Type,
		AccountID:   account.ID,
		ScopeType:   scope.Type,
		ScopeID:     scope.ID,
		UserAgent:   userAgent,
		IPAddress:   ipAddress,
	})
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	return session, token, nil
}

// recordLoginFailure advances the account's failure counter and persists it.
// The progressive backoff hint is logged for operators; the client only ever
// sees the collapsed credentials error until the lockout trips.
func (s *Service) recordLoginFailure(ctx context.Context, account *Account) {
	account.RecordFailure()
	if err := s.directory.UpdateLoginState(ctx, account.Ref(), account.FailedAttempts, account.LockedUntil); err != nil {
		errutil.LogError(s.logger, "failed to record login failure", err)
		return
	}
	res := CheckFailures(account.FailedAttempts, account.LockedUntil)
	s.logger.Debug("login failure recorded",
		slog.String("account_id", account.ID.String()),
		slog.Int("failed_attempts", account.FailedAttempts),
		slog.Duration("suggested_delay", res.Delay),
		slog.Bool("locked_out", res.IsLockedOut))
}

// Signout revokes the session holding the token. Server-side invalidation
// happens here; clearing the client-held reference is the boundary's job
// and must follow, never precede, this call.
func (s *Service) Signout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// SignoutAll revokes every session for the account, including the caller's
// own, and returns the number removed.
func (s *Service) SignoutAll(ctx context.Context, accountType AccountType, accountID ulid.ULID) (int64, error) {
	return s.sessions.RevokeAll(ctx, accountType, accountID)
}

// ValidateSession validates a session token and refreshes its liveness.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Validate(ctx, token)
}

// ListSessions returns all active sessions for the account, oldest first.
func (s *Service) ListSessions(ctx context.Context, accountType AccountType, accountID ulid.ULID) ([]*Session, error) {
	return s.sessions.List(ctx, accountType, accountID)
}
