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

// Session token configuration.
const (
	SessionTokenBytes         = 32                 // 32 bytes = 64 hex chars
	DefaultSessionTokenExpiry = 7 * 24 * time.Hour // 7 day expiry
)

// Session is a server-side record proving an authenticated account for a
// bounded time window, referenced by an opaque token held by the client.
// Only the SHA-256 hash of the token is ever stored.
type Session struct {
	ID           ulid.ULID
	AccountType  AccountType
	AccountID    ulid.ULID
	ScopeType    ScopeType
	ScopeID      ulid.ULID
	TokenHash    string
	UserAgent    string
	IPAddress    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// SessionDescriptor carries the caller-supplied attributes of a new session.
// UserAgent and IPAddress are optional and may be empty.
type SessionDescriptor struct {
	AccountType AccountType
	AccountID   ulid.ULID
	ScopeType   ScopeType
	ScopeID     ulid.ULID
	UserAgent   string
	IPAddress   string
}

// NewSession creates a validated Session instance.
// Returns an error if any required fields are invalid.
func NewSession(desc SessionDescriptor, tokenHash string, expiresAt time.Time) (*Session, error) {
	if !desc.AccountType.Valid() {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_TYPE").
			With("account_type", string(desc.AccountType)).
			Errorf("unknown account type")
	}
	if desc.AccountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if !desc.ScopeType.Valid() {
		return nil, oops.Code("SESSION_INVALID_SCOPE_TYPE").
			With("scope_type", string(desc.ScopeType)).
			Errorf("unknown scope type")
	}
	if desc.ScopeID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_SCOPE").Errorf("scope ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}

	now := time.Now()
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	return &Session{
		ID:           ulid.Make(),
		AccountType:  desc.AccountType,
		AccountID:    desc.AccountID,
		ScopeType:    desc.ScopeType,
		ScopeID:      desc.ScopeID,
		TokenHash:    tokenHash,
		UserAgent:    desc.UserAgent,
		IPAddress:    desc.IPAddress,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		LastActiveAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the given time.
// Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// BelongsTo reports whether the session is owned by the given account.
func (s *Session) BelongsTo(accountType AccountType, accountID ulid.ULID) bool {
	return s.AccountType == accountType && s.AccountID.Compare(accountID) == 0
}

// InScope reports whether the session authorizes operations in the given
// context. A session scoped to X must never authorize operations outside X.
func (s *Session) InScope(scope Scope) bool {
	return s.ScopeType == scope.Type && s.ScopeID.Compare(scope.ID) == 0
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA256 hash of a session token.
// This is used to securely store tokens in the database.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
// Returns (true, nil) on match, (false, nil) on mismatch, or (false, error) on invalid input.
func VerifySessionToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashSessionToken(token)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session. A token-hash collision surfaces as a
	// unique-violation storage error, never as silent reuse.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// ListByAccount retrieves all non-expired sessions for an account,
	// ordered by creation time ascending.
	ListByAccount(ctx context.Context, accountType AccountType, accountID ulid.ULID) ([]*Session, error)

	// TouchLastActive advances the LastActiveAt timestamp for a session.
	// The stored value never moves backwards; a stale write is a no-op.
	// Returns ErrNotFound (wrapped) if the session no longer exists.
	TouchLastActive(ctx context.Context, id ulid.ULID, lastActive time.Time) error

	// DeleteByTokenHash removes the session with the given token hash and
	// returns the number of rows removed. Deleting an absent session is not
	// an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error)

	// DeleteByAccount removes every session for the account regardless of
	// scope and returns the count.
	DeleteByAccount(ctx context.Context, accountType AccountType, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes all expired sessions and returns the count of
	// deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
