// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountType discriminates which account table an identity belongs to.
type AccountType string

// Known account types.
const (
	AccountTenant      AccountType = "tenant"
	AccountEnvironment AccountType = "environment"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTenant || t == AccountEnvironment
}

// ParseAccountType converts a string to an AccountType.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", oops.Code("ACCOUNT_TYPE_INVALID").With("account_type", s).Errorf("unknown account type: %q", s)
	}
	return t, nil
}

// ScopeType is the kind of authorization context a session is bound to.
type ScopeType string

// Known scope types.
const (
	ScopeTenant      ScopeType = "tenant"
	ScopeEnvironment ScopeType = "environment"
)

// Valid reports whether t is a known scope type.
func (t ScopeType) Valid() bool {
	return t == ScopeTenant || t == ScopeEnvironment
}

// ParseScopeType converts a string to a ScopeType.
func ParseScopeType(s string) (ScopeType, error) {
	t := ScopeType(s)
	if !t.Valid() {
		return "", oops.Code("SCOPE_TYPE_INVALID").With("scope_type", s).Errorf("unknown scope type: %q", s)
	}
	return t, nil
}

// Scope is the tenant or environment a session or lookup is bound to.
type Scope struct {
	Type ScopeType
	ID   ulid.ULID
}

// IdentifierKind is the field an account is being looked up by.
type IdentifierKind string

// Identifier kinds. Exactly one is populated per lookup.
const (
	IdentifierEmail    IdentifierKind = "email"
	IdentifierPhone    IdentifierKind = "phone"
	IdentifierUsername IdentifierKind = "username"
)

// Identifier is a single pre-validated account identifier. The HTTP boundary
// is responsible for collapsing its loosely-typed request body into exactly
// one non-empty field before this package is invoked; constructors here only
// enforce non-emptiness.
type Identifier struct {
	kind  IdentifierKind
	value string
}

// EmailIdentifier returns an email identifier.
func EmailIdentifier(email string) Identifier {
	return Identifier{kind: IdentifierEmail, value: email}
}

// PhoneIdentifier returns a phone identifier.
func PhoneIdentifier(phone string) Identifier {
	return Identifier{kind: IdentifierPhone, value: phone}
}

// UsernameIdentifier returns a username identifier.
func UsernameIdentifier(username string) Identifier {
	return Identifier{kind: IdentifierUsername, value: username}
}

// Kind returns the identifier kind.
func (i Identifier) Kind() IdentifierKind { return i.kind }

// Value returns the identifier value.
func (i Identifier) Value() string { return i.value }

// IsZero reports whether the identifier is unpopulated.
func (i Identifier) IsZero() bool { return i.kind == "" || i.value == "" }

// Account is the external account shape this core consumes. Apart from the
// login failure counters, it is looked up, never mutated; account CRUD lives
// outside this package.
type Account struct {
	ID           ulid.ULID
	Type         AccountType
	PasswordHash string // empty when the account has no local credential
	Disabled     bool
	Role         Role

	// Login failure rate limiting state, persisted via
	// AccountDirectory.UpdateLoginState.
	FailedAttempts int
	LockedUntil    *time.Time
}

// Ref returns the account's reference.
func (a *Account) Ref() AccountRef {
	return AccountRef{Type: a.Type, ID: a.ID}
}

// IsLocked reports whether the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets the lockout
// timestamp once the threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts, a.LockedUntil = ResetOnSuccess()
}

// AccountRef identifies an account without carrying its state.
type AccountRef struct {
	Type AccountType
	ID   ulid.ULID
}

// AccountDirectory resolves accounts by identifier within a scope.
// Implementations are owned by the account-persistence layer.
type AccountDirectory interface {
	// FindByIdentifier returns the account matching the identifier within the
	// scope, or ErrNotFound (possibly wrapped) when no account matches.
	FindByIdentifier(ctx context.Context, ident Identifier, scope Scope) (*Account, error)

	// UpdateLoginState persists the account's failure counter and lockout
	// timestamp. Login treats failures here as best effort.
	UpdateLoginState(ctx context.Context, ref AccountRef, failedAttempts int, lockedUntil *time.Time) error
}

// PasswordUpdater durably commits a new password hash for an account.
// It is injected into PasswordResetService.ResetPassword so the reset flow
// never depends on a concrete account schema.
type PasswordUpdater func(ctx context.Context, ref AccountRef, passwordHash string) error
