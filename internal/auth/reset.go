// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration. Reset tokens are short-lived; their entropy pool
// is a separate crypto/rand draw and a separate table, so neither a session
// token nor a reset token is derivable from the other.
const (
	ResetTokenBytes         = 32        // 32 bytes = 64 hex chars
	DefaultResetTokenExpiry = time.Hour // 1 hour expiry
)

// PasswordReset represents a password reset request.
type PasswordReset struct {
	ID          ulid.ULID
	AccountType AccountType
	AccountID   ulid.ULID
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewPasswordReset creates a validated PasswordReset instance.
func NewPasswordReset(accountType AccountType, accountID ulid.ULID, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	if !accountType.Valid() {
		return nil, oops.Code("RESET_INVALID_ACCOUNT_TYPE").
			With("account_type", string(accountType)).
			Errorf("unknown account type")
	}
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &PasswordReset{
		ID:          ulid.Make(),
		AccountType: accountType,
		AccountID:   accountID,
		TokenHash:   tokenHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *PasswordReset) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsExpiredAt returns true if the token would be expired at the given time.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// AccountRef returns the owning account reference.
func (r *PasswordReset) AccountRef() AccountRef {
	return AccountRef{Type: r.AccountType, ID: r.AccountID}
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is handed to the notifier; the hash is stored in the database.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = hashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := hashResetToken(token)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// hashResetToken computes the SHA256 hash of a token.
func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new password reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves a reset request by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// DeleteByAccount removes all reset requests for an account and returns
	// the count.
	DeleteByAccount(ctx context.Context, accountType AccountType, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes all expired reset requests and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
