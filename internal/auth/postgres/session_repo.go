// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyline/keyline/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, account_type, account_id, scope_type, scope_id, token_hash, user_agent, ip_address, expires_at, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		session.ID.String(),
		string(session.AccountType),
		session.AccountID.String(),
		string(session.ScopeType),
		session.ScopeID.String(),
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastActiveAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("SESSION_TOKEN_COLLISION").
				With("operation", "insert session").
				Wrap(err)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_type, account_id, scope_type, scope_id, token_hash, user_agent, ip_address, expires_at, created_at, last_active_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// ListByAccount retrieves all non-expired sessions for an account, ordered by
// creation time ascending.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountType auth.AccountType, accountID ulid.ULID) ([]*auth.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_type, account_id, scope_type, scope_id, token_hash, user_agent, ip_address, expires_at, created_at, last_active_at
		FROM sessions
		WHERE account_type = $1 AND account_id = $2 AND expires_at > $3
		ORDER BY created_at ASC
	`, string(accountType), accountID.String(), time.Now())
	if err != nil {
		return nil, oops.Code("SESSION_LIST_BY_ACCOUNT_FAILED").
			With("operation", "list sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := r.scanSessionRow(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}

	return sessions, nil
}

// TouchLastActive advances the LastActiveAt timestamp for a session.
// GREATEST keeps the stored value monotone under concurrent validates.
func (r *SessionRepository) TouchLastActive(ctx context.Context, id ulid.ULID, lastActive time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET last_active_at = GREATEST(last_active_at, $2)
		WHERE id = $1
	`, id.String(), lastActive)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "update last_active_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByTokenHash removes the session with the given token hash.
// Deleting an absent session is a valid no-op; the count is returned.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteByAccount removes all sessions for an account and returns the count.
func (r *SessionRepository) DeleteByAccount(ctx context.Context, accountType auth.AccountType, accountID ulid.ULID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE account_type = $1 AND account_id = $2
	`, string(accountType), accountID.String())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_BY_ACCOUNT_FAILED").
			With("operation", "delete sessions by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *SessionRepository) scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr        string
		accountType  string
		accountIDStr string
		scopeType    string
		scopeIDStr   string
		tokenHash    string
		userAgent    string
		ipAddress    string
		expiresAt    time.Time
		createdAt    time.Time
		lastActiveAt time.Time
	)

	err := row.Scan(&idStr, &accountType, &accountIDStr, &scopeType, &scopeIDStr, &tokenHash, &userAgent, &ipAddress, &expiresAt, &createdAt, &lastActiveAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	return r.buildSession(idStr, accountType, accountIDStr, scopeType, scopeIDStr, tokenHash, userAgent, ipAddress, expiresAt, createdAt, lastActiveAt)
}

// scanSessionRow scans a row from a rows iterator into a Session.
func (r *SessionRepository) scanSessionRow(rows pgx.Rows) (*auth.Session, error) {
	var (
		idStr        string
		accountType  string
		accountIDStr string
		scopeType    string
		scopeIDStr   string
		tokenHash    string
		userAgent    string
		ipAddress    string
		expiresAt    time.Time
		createdAt    time.Time
		lastActiveAt time.Time
	)

	err := rows.Scan(&idStr, &accountType, &accountIDStr, &scopeType, &scopeIDStr, &tokenHash, &userAgent, &ipAddress, &expiresAt, &createdAt, &lastActiveAt)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session row").
			Wrap(err)
	}

	return r.buildSession(idStr, accountType, accountIDStr, scopeType, scopeIDStr, tokenHash, userAgent, ipAddress, expiresAt, createdAt, lastActiveAt)
}

// buildSession constructs a Session from scanned values.
func (r *SessionRepository) buildSession(
	idStr, accountType, accountIDStr, scopeType, scopeIDStr string,
	tokenHash, userAgent, ipAddress string,
	expiresAt, createdAt, lastActiveAt time.Time,
) (*auth.Session, error) {
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}

	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountIDStr).
			Wrap(err)
	}

	scopeID, err := ulid.Parse(scopeIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_SCOPE_ID").
			With("operation", "parse scope id").
			With("scope_id", scopeIDStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:           id,
		AccountType:  auth.AccountType(accountType),
		AccountID:    accountID,
		ScopeType:    auth.ScopeType(scopeType),
		ScopeID:      scopeID,
		TokenHash:    tokenHash,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		ExpiresAt:    expiresAt,
		CreatedAt:    createdAt,
		LastActiveAt: lastActiveAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
