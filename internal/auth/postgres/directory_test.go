// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/pkg/errutil"
)

var accountColumns = []string{"id", "account_type", "password_hash", "disabled", "role", "failed_attempts", "locked_until"}

func TestAccountDirectory_FindByIdentifier(t *testing.T) {
	ctx := context.Background()
	scope := auth.Scope{Type: auth.ScopeTenant, ID: ulid.Make()}

	tests := []struct {
		name       string
		identifier auth.Identifier
		column     string
	}{
		{name: "by email", identifier: auth.EmailIdentifier("user@example.com"), column: "email"},
		{name: "by phone", identifier: auth.PhoneIdentifier("+15550100"), column: "phone"},
		{name: "by username", identifier: auth.UsernameIdentifier("someuser"), column: "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			accountID := ulid.Make()
			mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE ` + tt.column + ` =`).
				WithArgs(tt.identifier.Value(), string(scope.Type), scope.ID.String()).
				WillReturnRows(pgxmock.NewRows(accountColumns).AddRow(
					accountID.String(), string(auth.AccountTenant), "some-hash", false, "admin", 2, (*time.Time)(nil),
				))

			dir := NewAccountDirectory(mock)
			account, err := dir.FindByIdentifier(ctx, tt.identifier, scope)
			require.NoError(t, err)
			assert.Equal(t, accountID, account.ID)
			assert.Equal(t, auth.AccountTenant, account.Type)
			assert.Equal(t, "some-hash", account.PasswordHash)
			assert.False(t, account.Disabled)
			assert.Equal(t, auth.RoleAdmin, account.Role)
			assert.Equal(t, 2, account.FailedAttempts)
			assert.Nil(t, account.LockedUntil)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("zero identifier is rejected without a query", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		dir := NewAccountDirectory(mock)
		_, err = dir.FindByIdentifier(ctx, auth.Identifier{}, scope)
		errutil.AssertErrorCode(t, err, "ACCOUNT_IDENTIFIER_INVALID")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent account wraps ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("nobody@example.com", string(scope.Type), scope.ID.String()).
			WillReturnError(pgx.ErrNoRows)

		dir := NewAccountDirectory(mock)
		account, err := dir.FindByIdentifier(ctx, auth.EmailIdentifier("nobody@example.com"), scope)
		assert.Nil(t, account)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("unknown stored role surfaces as error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("user@example.com", string(scope.Type), scope.ID.String()).
			WillReturnRows(pgxmock.NewRows(accountColumns).AddRow(
				ulid.Make().String(), string(auth.AccountTenant), "some-hash", false, "superuser", 0, (*time.Time)(nil),
			))

		dir := NewAccountDirectory(mock)
		_, err = dir.FindByIdentifier(ctx, auth.EmailIdentifier("user@example.com"), scope)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_ROLE")
	})

	t.Run("database errors surface as lookup failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("user@example.com", string(scope.Type), scope.ID.String()).
			WillReturnError(errors.New("connection refused"))

		dir := NewAccountDirectory(mock)
		_, err = dir.FindByIdentifier(ctx, auth.EmailIdentifier("user@example.com"), scope)
		errutil.AssertErrorCode(t, err, "ACCOUNT_LOOKUP_FAILED")
	})
}

func TestAccountDirectory_UpdatePasswordHash(t *testing.T) {
	ctx := context.Background()

	t.Run("updates hash", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET password_hash`).
			WithArgs(string(ref.Type), ref.ID.String(), "new-hash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		dir := NewAccountDirectory(mock)
		require.NoError(t, dir.UpdatePasswordHash(ctx, ref, "new-hash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent account wraps ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET password_hash`).
			WithArgs(string(ref.Type), ref.ID.String(), "new-hash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		dir := NewAccountDirectory(mock)
		err = dir.UpdatePasswordHash(ctx, ref, "new-hash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("database errors surface as update failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET password_hash`).
			WithArgs(string(ref.Type), ref.ID.String(), "new-hash", pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		dir := NewAccountDirectory(mock)
		err = dir.UpdatePasswordHash(ctx, ref, "new-hash")
		errutil.AssertErrorCode(t, err, "ACCOUNT_UPDATE_FAILED")
	})
}

func TestAccountDirectory_UpdateLoginState(t *testing.T) {
	ctx := context.Background()

	t.Run("persists counter and lockout", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		lockedUntil := time.Now().Add(15 * time.Minute)
		mock.ExpectExec(`UPDATE accounts SET failed_attempts`).
			WithArgs(string(ref.Type), ref.ID.String(), 7, &lockedUntil).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		dir := NewAccountDirectory(mock)
		require.NoError(t, dir.UpdateLoginState(ctx, ref, 7, &lockedUntil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clears lockout with nil timestamp", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET failed_attempts`).
			WithArgs(string(ref.Type), ref.ID.String(), 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		dir := NewAccountDirectory(mock)
		require.NoError(t, dir.UpdateLoginState(ctx, ref, 0, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent account wraps ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET failed_attempts`).
			WithArgs(string(ref.Type), ref.ID.String(), 1, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		dir := NewAccountDirectory(mock)
		err = dir.UpdateLoginState(ctx, ref, 1, nil)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("database errors surface as update failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ref := auth.AccountRef{Type: auth.AccountTenant, ID: ulid.Make()}
		mock.ExpectExec(`UPDATE accounts SET failed_attempts`).
			WithArgs(string(ref.Type), ref.ID.String(), 1, pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		dir := NewAccountDirectory(mock)
		err = dir.UpdateLoginState(ctx, ref, 1, nil)
		errutil.AssertErrorCode(t, err, "ACCOUNT_UPDATE_FAILED")
	})
}

func TestScopeDirectory_ScopeExists(t *testing.T) {
	ctx := context.Background()

	t.Run("known scope", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		scope := auth.Scope{Type: auth.ScopeTenant, ID: ulid.Make()}
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(string(scope.Type), scope.ID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		dir := NewScopeDirectory(mock)
		exists, err := dir.ScopeExists(ctx, scope)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown scope is false without error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		scope := auth.Scope{Type: auth.ScopeEnvironment, ID: ulid.Make()}
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(string(scope.Type), scope.ID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		dir := NewScopeDirectory(mock)
		exists, err := dir.ScopeExists(ctx, scope)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("database errors surface as lookup failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		scope := auth.Scope{Type: auth.ScopeTenant, ID: ulid.Make()}
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(string(scope.Type), scope.ID.String()).
			WillReturnError(errors.New("connection refused"))

		dir := NewScopeDirectory(mock)
		_, err = dir.ScopeExists(ctx, scope)
		errutil.AssertErrorCode(t, err, "SCOPE_LOOKUP_FAILED")
	})
}
