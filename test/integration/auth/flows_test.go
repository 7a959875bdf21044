// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

//go:build integration

package auth_test

import (
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/pkg/errutil"
)

var _ = Describe("Login and session lifecycle", func() {
	var (
		scope auth.Scope
		email string
	)

	BeforeEach(func() {
		scope = env.seedScope()
		email = uniqueEmail()
		env.seedAccount(scope, email, "password123", false, auth.RoleUser)
	})

	It("authenticates with the correct password and issues a usable session", func() {
		session, token, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "password123", scope, "Test Agent", "192.0.2.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(HaveLen(64))
		Expect(session.ScopeID).To(Equal(scope.ID))

		validated, err := env.AuthSvc.ValidateSession(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(validated.ID).To(Equal(session.ID))
		Expect(validated.UserAgent).To(Equal("Test Agent"))
	})

	It("rejects a wrong password with the collapsed credentials error", func() {
		_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "wrongpass1", scope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
	})

	It("rejects an unknown identifier identically to a wrong password", func() {
		_, _, wrongErr := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "wrongpass1", scope, "", "")
		_, _, unknownErr := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(uniqueEmail()), "wrongpass1", scope, "", "")
		Expect(errutil.Code(unknownErr)).To(Equal(errutil.Code(wrongErr)))
	})

	It("does not find the account outside its scope", func() {
		otherScope := env.seedScope()
		_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "password123", otherScope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
	})

	It("reports a disabled account only after the password verifies", func() {
		disabledEmail := uniqueEmail()
		env.seedAccount(scope, disabledEmail, "password123", true, auth.RoleUser)

		_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(disabledEmail), "password123", scope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_ACCOUNT_DISABLED"))

		_, _, err = env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(disabledEmail), "wrongpass1", scope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
	})

	It("locks the account after repeated failures and reveals it only post-verify", func() {
		lockEmail := uniqueEmail()
		env.seedAccount(scope, lockEmail, "password123", false, auth.RoleUser)

		for i := 0; i < auth.LockoutThreshold; i++ {
			_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(lockEmail), "wrongpass1", scope, "", "")
			Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
		}

		_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(lockEmail), "password123", scope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_ACCOUNT_LOCKED"))
	})

	It("resets the failure counter on a successful login", func() {
		resetEmail := uniqueEmail()
		env.seedAccount(scope, resetEmail, "password123", false, auth.RoleUser)

		for i := 0; i < 3; i++ {
			_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(resetEmail), "wrongpass1", scope, "", "")
			Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
		}

		_, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(resetEmail), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())

		account, err := env.Directory.FindByIdentifier(env.ctx, auth.EmailIdentifier(resetEmail), scope)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.FailedAttempts).To(BeZero())
		Expect(account.LockedUntil).To(BeNil())
	})

	It("revokes a session on signout", func() {
		_, token, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.AuthSvc.Signout(env.ctx, token)).To(Succeed())

		_, err = env.AuthSvc.ValidateSession(env.ctx, token)
		Expect(errutil.Code(err)).To(Equal("SESSION_NOT_FOUND"))

		// Signout of an already-revoked token stays a no-op.
		Expect(env.AuthSvc.Signout(env.ctx, token)).To(Succeed())
	})

	It("revokes every session for the account on signout-all", func() {
		accountEmail := uniqueEmail()
		accountID := env.seedAccount(scope, accountEmail, "password123", false, auth.RoleUser)

		_, first, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(accountEmail), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())
		_, second, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(accountEmail), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())

		count, err := env.AuthSvc.SignoutAll(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(2)))

		_, err = env.AuthSvc.ValidateSession(env.ctx, first)
		Expect(errutil.Code(err)).To(Equal("SESSION_NOT_FOUND"))
		_, err = env.AuthSvc.ValidateSession(env.ctx, second)
		Expect(errutil.Code(err)).To(Equal("SESSION_NOT_FOUND"))
	})

	It("lists sessions oldest first", func() {
		accountEmail := uniqueEmail()
		accountID := env.seedAccount(scope, accountEmail, "password123", false, auth.RoleUser)

		firstSession, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(accountEmail), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())
		secondSession, _, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(accountEmail), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())

		sessions, err := env.AuthSvc.ListSessions(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(2))
		Expect(sessions[0].ID).To(Equal(firstSession.ID))
		Expect(sessions[1].ID).To(Equal(secondSession.ID))
	})
})

var _ = Describe("Session expiry", func() {
	It("lazily deletes an expired session on validation", func() {
		token, _, err := auth.GenerateSessionToken()
		Expect(err).NotTo(HaveOccurred())

		now := time.Now().UTC()
		session := &auth.Session{
			ID:           ulid.Make(),
			AccountType:  auth.AccountTenant,
			AccountID:    ulid.Make(),
			ScopeType:    auth.ScopeTenant,
			ScopeID:      ulid.Make(),
			TokenHash:    auth.HashSessionToken(token),
			ExpiresAt:    now.Add(-time.Minute),
			CreatedAt:    now.Add(-time.Hour),
			LastActiveAt: now.Add(-time.Hour),
		}
		Expect(env.Sessions.Create(env.ctx, session)).To(Succeed())

		_, err = env.SessionSvc.Validate(env.ctx, token)
		Expect(errutil.Code(err)).To(Equal("SESSION_NOT_FOUND"))

		// The expired row is gone after a validate touches it.
		_, err = env.Sessions.GetByTokenHash(env.ctx, session.TokenHash)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("sweeps expired sessions in bulk", func() {
		now := time.Now().UTC()
		for i := 0; i < 3; i++ {
			session := &auth.Session{
				ID:           ulid.Make(),
				AccountType:  auth.AccountTenant,
				AccountID:    ulid.Make(),
				ScopeType:    auth.ScopeTenant,
				ScopeID:      ulid.Make(),
				TokenHash:    auth.HashSessionToken(ulid.Make().String()),
				ExpiresAt:    now.Add(-time.Minute),
				CreatedAt:    now.Add(-time.Hour),
				LastActiveAt: now.Add(-time.Hour),
			}
			Expect(env.Sessions.Create(env.ctx, session)).To(Succeed())
		}

		count, err := env.Sessions.DeleteExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeNumerically(">=", 3))
	})

	It("keeps last-active monotone under concurrent touches", func() {
		now := time.Now().UTC()
		session := &auth.Session{
			ID:           ulid.Make(),
			AccountType:  auth.AccountTenant,
			AccountID:    ulid.Make(),
			ScopeType:    auth.ScopeTenant,
			ScopeID:      ulid.Make(),
			TokenHash:    auth.HashSessionToken(ulid.Make().String()),
			ExpiresAt:    now.Add(time.Hour),
			CreatedAt:    now,
			LastActiveAt: now,
		}
		Expect(env.Sessions.Create(env.ctx, session)).To(Succeed())

		later := now.Add(10 * time.Minute)
		earlier := now.Add(5 * time.Minute)
		Expect(env.Sessions.TouchLastActive(env.ctx, session.ID, later)).To(Succeed())
		Expect(env.Sessions.TouchLastActive(env.ctx, session.ID, earlier)).To(Succeed())

		got, err := env.Sessions.GetByTokenHash(env.ctx, session.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastActiveAt).To(BeTemporally("~", later, time.Second))
	})
})

var _ = Describe("Password reset flow", func() {
	var (
		scope     auth.Scope
		email     string
		accountID ulid.ULID
	)

	BeforeEach(func() {
		scope = env.seedScope()
		email = uniqueEmail()
		accountID = env.seedAccount(scope, email, "password123", false, auth.RoleUser)
	})

	It("rotates the credential and revokes all sessions", func() {
		_, sessionToken, err := env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "password123", scope, "", "")
		Expect(err).NotTo(HaveOccurred())

		_, resetToken, err := env.ResetSvc.RequestReset(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())

		err = env.ResetSvc.ResetPassword(env.ctx, resetToken, "newpassword1", env.Directory.UpdatePasswordHash)
		Expect(err).NotTo(HaveOccurred())

		// The pre-reset session is gone.
		_, err = env.AuthSvc.ValidateSession(env.ctx, sessionToken)
		Expect(errutil.Code(err)).To(Equal("SESSION_NOT_FOUND"))

		// The old password no longer authenticates; the new one does.
		_, _, err = env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "password123", scope, "", "")
		Expect(errutil.Code(err)).To(Equal("AUTH_INVALID_CREDENTIALS"))
		_, _, err = env.AuthSvc.Login(env.ctx, auth.EmailIdentifier(email), "newpassword1", scope, "", "")
		Expect(err).NotTo(HaveOccurred())
	})

	It("consumes the token on use", func() {
		_, resetToken, err := env.ResetSvc.RequestReset(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())

		Expect(env.ResetSvc.ResetPassword(env.ctx, resetToken, "newpassword1", env.Directory.UpdatePasswordHash)).To(Succeed())

		err = env.ResetSvc.ResetPassword(env.ctx, resetToken, "otherpassword1", env.Directory.UpdatePasswordHash)
		Expect(errutil.Code(err)).To(Equal("RESET_TOKEN_INVALID"))
	})

	It("supersedes earlier tokens when a new one is requested", func() {
		_, firstToken, err := env.ResetSvc.RequestReset(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())
		_, secondToken, err := env.ResetSvc.RequestReset(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())

		err = env.ResetSvc.ResetPassword(env.ctx, firstToken, "newpassword1", env.Directory.UpdatePasswordHash)
		Expect(errutil.Code(err)).To(Equal("RESET_TOKEN_INVALID"))

		Expect(env.ResetSvc.ResetPassword(env.ctx, secondToken, "newpassword1", env.Directory.UpdatePasswordHash)).To(Succeed())
	})

	It("rejects a weak replacement password without consuming the token", func() {
		_, resetToken, err := env.ResetSvc.RequestReset(env.ctx, auth.AccountTenant, accountID)
		Expect(err).NotTo(HaveOccurred())

		err = env.ResetSvc.ResetPassword(env.ctx, resetToken, "short", env.Directory.UpdatePasswordHash)
		Expect(errutil.Code(err)).To(Equal("AUTH_WEAK_PASSWORD"))

		Expect(env.ResetSvc.ResetPassword(env.ctx, resetToken, "newpassword1", env.Directory.UpdatePasswordHash)).To(Succeed())
	})
})

var _ = Describe("Account and scope directories", func() {
	It("resolves accounts by email, phone, and username", func() {
		scope := env.seedScope()
		hash, err := env.Hasher.Hash("password123")
		Expect(err).NotTo(HaveOccurred())

		id := ulid.Make()
		email := uniqueEmail()
		username := "user_" + ulid.Make().String()
		phone := "+1555" + id.String()[:7]
		_, err = env.pool.Exec(env.ctx, `
			INSERT INTO accounts (account_type, id, scope_type, scope_id, email, phone, username, password_hash, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, string(auth.AccountTenant), id.String(), string(scope.Type), scope.ID.String(),
			email, phone, username, hash, auth.RoleAdmin.String())
		Expect(err).NotTo(HaveOccurred())

		for _, ident := range []auth.Identifier{
			auth.EmailIdentifier(email),
			auth.PhoneIdentifier(phone),
			auth.UsernameIdentifier(username),
		} {
			account, err := env.Directory.FindByIdentifier(env.ctx, ident, scope)
			Expect(err).NotTo(HaveOccurred())
			Expect(account.ID).To(Equal(id))
			Expect(account.Role).To(Equal(auth.RoleAdmin))
		}
	})

	It("reports scope existence", func() {
		scope := env.seedScope()

		exists, err := env.Scopes.ScopeExists(env.ctx, scope)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())

		exists, err = env.Scopes.ScopeExists(env.ctx, auth.Scope{Type: auth.ScopeTenant, ID: ulid.Make()})
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())
	})

	It("enforces identifier uniqueness per scope", func() {
		scope := env.seedScope()
		email := uniqueEmail()
		env.seedAccount(scope, email, "password123", false, auth.RoleUser)

		hash, err := env.Hasher.Hash("password123")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.pool.Exec(env.ctx, `
			INSERT INTO accounts (account_type, id, scope_type, scope_id, email, password_hash, role)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, string(auth.AccountTenant), ulid.Make().String(), string(scope.Type), scope.ID.String(),
			email, hash, auth.RoleUser.String())
		Expect(err).To(HaveOccurred())

		// The same email in a different scope is fine.
		otherScope := env.seedScope()
		env.seedAccount(otherScope, email, "password123", false, auth.RoleUser)
	})
})
