// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyline/keyline/internal/auth"
)

// AccountDirectory implements auth.AccountDirectory against the accounts
// table. Account CRUD lives in the account service; this directory only
// reads what the auth core needs.
type AccountDirectory struct {
	pool poolIface
}

// NewAccountDirectory creates a new AccountDirectory.
func NewAccountDirectory(pool poolIface) *AccountDirectory {
	return &AccountDirectory{pool: pool}
}

// identifierColumn maps an identifier kind to the column it matches.
// The column set is closed; an unknown kind is a caller bug.
func identifierColumn(kind auth.IdentifierKind) (string, error) {
	switch kind {
	case auth.IdentifierEmail:
		return "email", nil
	case auth.IdentifierPhone:
		return "phone", nil
	case auth.IdentifierUsername:
		return "username", nil
	default:
		return "", oops.Code("ACCOUNT_IDENTIFIER_INVALID").
			With("kind", string(kind)).
			Errorf("unknown identifier kind")
	}
}

// FindByIdentifier returns the account matching the identifier within the
// scope, or auth.ErrNotFound (wrapped) when no account matches.
func (d *AccountDirectory) FindByIdentifier(ctx context.Context, ident auth.Identifier, scope auth.Scope) (*auth.Account, error) {
	if ident.IsZero() {
		return nil, oops.Code("ACCOUNT_IDENTIFIER_INVALID").Errorf("identifier is required")
	}

	column, err := identifierColumn(ident.Kind())
	if err != nil {
		return nil, err
	}

	// column comes from the closed identifierColumn map, never from input.
	row := d.pool.QueryRow(ctx, `
		SELECT id, account_type, password_hash, disabled, role, failed_attempts, locked_until
		FROM accounts
		WHERE `+column+` = $1 AND scope_type = $2 AND scope_id = $3
	`, ident.Value(), string(scope.Type), scope.ID.String())

	var (
		idStr          string
		accountType    string
		passwordHash   string
		disabled       bool
		roleStr        string
		failedAttempts int
		lockedUntil    *time.Time
	)
	err = row.Scan(&idStr, &accountType, &passwordHash, &disabled, &roleStr, &failedAttempts, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "find account by identifier").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").
			With("operation", "parse account role").
			With("role", roleStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:             id,
		Type:           auth.AccountType(accountType),
		PasswordHash:   passwordHash,
		Disabled:       disabled,
		Role:           role,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
	}, nil
}

// UpdateLoginState persists the account's failure counter and lockout
// timestamp.
func (d *AccountDirectory) UpdateLoginState(ctx context.Context, ref auth.AccountRef, failedAttempts int, lockedUntil *time.Time) error {
	result, err := d.pool.Exec(ctx, `
		UPDATE accounts SET failed_attempts = $3, locked_until = $4
		WHERE account_type = $1 AND id = $2
	`, string(ref.Type), ref.ID.String(), failedAttempts, lockedUntil)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update login state").
			With("account_id", ref.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", ref.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash commits a new password hash for an account. Satisfies
// auth.PasswordUpdater when bound as a method value.
func (d *AccountDirectory) UpdatePasswordHash(ctx context.Context, ref auth.AccountRef, passwordHash string) error {
	result, err := d.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $3, password_changed_at = $4
		WHERE account_type = $1 AND id = $2
	`, string(ref.Type), ref.ID.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("account_id", ref.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", ref.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ScopeDirectory answers scope existence checks against the scopes table.
type ScopeDirectory struct {
	pool poolIface
}

// NewScopeDirectory creates a new ScopeDirectory.
func NewScopeDirectory(pool poolIface) *ScopeDirectory {
	return &ScopeDirectory{pool: pool}
}

// ScopeExists reports whether the scope is known. An unknown scope is
// (false, nil); only storage failures are errors.
func (d *ScopeDirectory) ScopeExists(ctx context.Context, scope auth.Scope) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM scopes WHERE scope_type = $1 AND id = $2)
	`, string(scope.Type), scope.ID.String()).Scan(&exists)
	if err != nil {
		return false, oops.Code("SCOPE_LOOKUP_FAILED").
			With("operation", "check scope existence").
			With("scope_id", scope.ID.String()).
			Wrap(err)
	}
	return exists, nil
}

// Compile-time interface check.
var _ auth.AccountDirectory = (*AccountDirectory)(nil)
