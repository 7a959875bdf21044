// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

// Package auth provides the session-based authentication core for Keyline.
//
// # Domain Types
//
// Domain types (Session, PasswordReset) should be created using their
// respective constructors:
//   - NewSession - creates a Session with a validated descriptor and expiry
//   - NewPasswordReset - creates a PasswordReset with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, signout, session validation and listing
//   - SessionService - session issuance, validation, revocation
//   - PasswordResetService - reset token lifecycle and password updates
//
// Services are created with New*Service constructors that validate
// dependencies. Account persistence is deliberately external: the Service
// consumes an AccountDirectory and PasswordResetService consumes a
// PasswordUpdater, so this package never depends on a concrete account schema.
package auth
