// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package auth

import (
	"unicode"

	"github.com/samber/oops"
)

// Password policy constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = MaxPasswordBytes
)

// ValidatePassword enforces the password-strength policy. Failures carry the
// AUTH_WEAK_PASSWORD code and a human-readable reason that is safe to return
// to clients verbatim.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_WEAK_PASSWORD").Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return oops.Code("AUTH_WEAK_PASSWORD").
			Errorf("password must contain at least one letter and one digit")
	}

	return nil
}
