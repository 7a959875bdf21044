// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"

	"github.com/keyline/keyline/internal/auth"
)

func TestRateLimiter_CheckFailures(t *testing.T) {
	t.Run("no failures returns no delay", func(t *testing.T) {
		result := auth.CheckFailures(0, nil)
		assert.Zero(t, result.Delay)
		assert.False(t, result.IsLockedOut)
	})

	t.Run("1-3 failures returns progressive delay", func(t *testing.T) {
		result1 := auth.CheckFailures(1, nil)
		assert.Equal(t, time.Second, result1.Delay)
		assert.False(t, result1.IsLockedOut)

		result2 := auth.CheckFailures(2, nil)
		assert.Equal(t, 2*time.Second, result2.Delay)

		result3 := auth.CheckFailures(3, nil)
		assert.Equal(t, 4*time.Second, result3.Delay)
	})

	t.Run("delay is capped before the lockout threshold", func(t *testing.T) {
		result := auth.CheckFailures(auth.LockoutThreshold-1, nil)
		assert.Equal(t, 32*time.Second, result.Delay)
		assert.False(t, result.IsLockedOut)
	})

	t.Run("threshold failures causes lockout", func(t *testing.T) {
		result := auth.CheckFailures(auth.LockoutThreshold, nil)
		assert.True(t, result.IsLockedOut)
		assert.Equal(t, auth.LockoutDuration, result.LockoutRemaining)
	})

	t.Run("existing lockout is detected", func(t *testing.T) {
		future := time.Now().Add(10 * time.Minute)
		result := auth.CheckFailures(0, &future)
		assert.True(t, result.IsLockedOut)
		assert.Positive(t, result.LockoutRemaining)
		assert.LessOrEqual(t, result.LockoutRemaining, 10*time.Minute)
	})
}

func TestRateLimiter_IsLockedOut(t *testing.T) {
	now := time.Now()

	t.Run("nil locked_until means not locked", func(t *testing.T) {
		assert.False(t, auth.IsLockedOut(nil))
	})

	t.Run("past locked_until means not locked", func(t *testing.T) {
		past := now.Add(-time.Hour)
		assert.False(t, auth.IsLockedOut(&past))
	})

	t.Run("future locked_until means locked", func(t *testing.T) {
		future := now.Add(time.Hour)
		assert.True(t, auth.IsLockedOut(&future))
	})
}

func TestRateLimiter_ComputeLockoutTime(t *testing.T) {
	t.Run("threshold failures returns lockout time", func(t *testing.T) {
		lockout := auth.ComputeLockoutTime(auth.LockoutThreshold)
		assert.NotNil(t, lockout)
		assert.True(t, lockout.After(time.Now()))
	})

	t.Run("below threshold returns nil", func(t *testing.T) {
		assert.Nil(t, auth.ComputeLockoutTime(auth.LockoutThreshold-1))
	})

	t.Run("above threshold still returns lockout", func(t *testing.T) {
		assert.NotNil(t, auth.ComputeLockoutTime(auth.LockoutThreshold+3))
	})
}

func TestAccount_FailureTracking(t *testing.T) {
	newAccount := func() *auth.Account {
		return &auth.Account{
			ID:   ulid.Make(),
			Type: auth.AccountTenant,
			Role: auth.RoleUser,
		}
	}

	t.Run("failures below threshold do not lock", func(t *testing.T) {
		account := newAccount()
		for i := 0; i < auth.LockoutThreshold-1; i++ {
			account.RecordFailure()
		}
		assert.Equal(t, auth.LockoutThreshold-1, account.FailedAttempts)
		assert.Nil(t, account.LockedUntil)
		assert.False(t, account.IsLocked())
	})

	t.Run("threshold failures lock the account", func(t *testing.T) {
		account := newAccount()
		for i := 0; i < auth.LockoutThreshold; i++ {
			account.RecordFailure()
		}
		assert.NotNil(t, account.LockedUntil)
		assert.True(t, account.IsLocked())
	})

	t.Run("success clears the counter and lockout", func(t *testing.T) {
		account := newAccount()
		for i := 0; i < auth.LockoutThreshold; i++ {
			account.RecordFailure()
		}
		account.RecordSuccess()
		assert.Zero(t, account.FailedAttempts)
		assert.Nil(t, account.LockedUntil)
		assert.False(t, account.IsLocked())
	})
}
