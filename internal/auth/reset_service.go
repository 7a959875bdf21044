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

// SessionRevoker revokes every session for an account. *SessionService
// satisfies it; the narrow interface keeps the reset flow mockable.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountType AccountType, accountID ulid.ULID) (int64, error)
}

// PasswordResetService handles the reset-token lifecycle.
type PasswordResetService struct {
	resets   PasswordResetRepository
	hasher   PasswordHasher
	sessions SessionRevoker
	ttl      time.Duration
	logger   *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService with the
// default token TTL.
func NewPasswordResetService(resets PasswordResetRepository, hasher PasswordHasher, sessions SessionRevoker) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithTTL(resets, hasher, sessions, DefaultResetTokenExpiry)
}

// NewPasswordResetServiceWithTTL creates a PasswordResetService with a
// custom token TTL.
func NewPasswordResetServiceWithTTL(resets PasswordResetRepository, hasher PasswordHasher, sessions SessionRevoker, ttl time.Duration) (*PasswordResetService, error) {
	if resets == nil {
		return nil, oops.Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session revoker is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("RESET_INVALID_TTL").With("ttl", ttl).Errorf("reset token TTL must be positive")
	}
	return &PasswordResetService{
		resets:   resets,
		hasher:   hasher,
		sessions: sessions,
		ttl:      ttl,
		logger:   slog.Default(),
	}, nil
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService with a
// custom logger.
func NewPasswordResetServiceWithLogger(resets PasswordResetRepository, hasher PasswordHasher, sessions SessionRevoker, ttl time.Duration, logger *slog.Logger) (*PasswordResetService, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewPasswordResetServiceWithTTL(resets, hasher, sessions, ttl)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// RequestReset issues a fresh reset token for the account. Any outstanding
// tokens for the same account are invalidated first, so only the newest
// token is ever redeemable. Returns the reset record and the plaintext
// token; delivering the token to the account holder is the caller's job.
func (s *PasswordResetService) RequestReset(ctx context.Context, accountType AccountType, accountID ulid.ULID) (*PasswordReset, string, error) {
	// Supersede outstanding tokens before issuing a new one. An old,
	// possibly-leaked token must not stay valid alongside the new one.
	if _, err := s.resets.DeleteByAccount(ctx, accountType, accountID); err != nil {
		return nil, "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "supersede outstanding tokens").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return nil, "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(accountType, accountID, hash, time.Now().Add(s.ttl))
	if err != nil {
		return nil, "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create password reset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return nil, "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist password reset").
			Wrap(err)
	}

	return reset, token, nil
}

// ValidateToken validates a reset token and returns the owning account.
// Pure lookup with expiry check, no mutation. Absent, expired, and
// already-consumed tokens all collapse to the RESET_TOKEN_INVALID code so a
// caller cannot probe token state.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (AccountRef, error) {
	if token == "" {
		return AccountRef{}, oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired token")
	}

	hash := hashResetToken(token)

	reset, err := s.resets.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AccountRef{}, oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired token")
		}
		return AccountRef{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	if reset.IsExpired() {
		return AccountRef{}, oops.Code("RESET_TOKEN_INVALID").Errorf("invalid or expired token")
	}

	return reset.AccountRef(), nil
}

// ResetPassword redeems a reset token and commits a new password.
//
// The order is fixed: validate token, enforce password policy, hash, commit
// via the injected updater, then clean up. Nothing is deleted or revoked
// before the updater reports success, so a crash mid-flow can leave stale
// tokens or sessions behind but can never claim success for an unchanged
// password. Cleanup failures after a durable update are logged, not
// returned.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string, update PasswordUpdater) error {
	if update == nil {
		return oops.Errorf("password updater is required")
	}

	ref, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err // Already carries the collapsed code.
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err // AUTH_WEAK_PASSWORD with a human-readable reason.
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := update(ctx, ref, passwordHash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("account_id", ref.ID.String()).
			Wrap(err)
	}

	// The password is durably committed. Consume this token and every other
	// outstanding token for the account, then force re-authentication
	// everywhere.
	if _, err := s.resets.DeleteByAccount(ctx, ref.Type, ref.ID); err != nil {
		errutil.LogError(s.logger, "failed to delete redeemed reset tokens", err)
	}
	if _, err := s.sessions.RevokeAll(ctx, ref.Type, ref.ID); err != nil {
		errutil.LogError(s.logger, "failed to revoke sessions after password reset", err)
	}

	return nil
}

// Cleanup sweeps expired reset tokens and returns the number removed.
// Purely storage reclamation: expired tokens already validate as invalid.
func (s *PasswordResetService) Cleanup(ctx context.Context) (int64, error) {
	count, err := s.resets.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("RESET_CLEANUP_FAILED").
			With("operation", "delete expired resets").
			Wrap(err)
	}
	return count, nil
}
