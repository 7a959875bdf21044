// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/pkg/errutil"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode maps domain error codes to HTTP status codes. Codes without a
// mapping are internal failures and must not leak detail to the client.
func statusForCode(code string) (int, bool) {
	switch code {
	case "AUTH_INVALID_CREDENTIALS", "SESSION_NOT_FOUND", "COOKIE_MISSING", "COOKIE_INVALID":
		return http.StatusUnauthorized, true
	case "AUTH_ACCOUNT_DISABLED":
		return http.StatusForbidden, true
	case "AUTH_ACCOUNT_LOCKED":
		return http.StatusTooManyRequests, true
	case "AUTH_WEAK_PASSWORD", "AUTH_INVALID_IDENTIFIER", "RESET_TOKEN_INVALID", "BAD_REQUEST":
		return http.StatusBadRequest, true
	case "SCOPE_NOT_FOUND":
		return http.StatusNotFound, true
	default:
		return http.StatusInternalServerError, false
	}
}

// clientMessageForCode returns the fixed client-facing message per code.
// Internal error text never reaches the wire.
func clientMessageForCode(code string) string {
	switch code {
	case "AUTH_INVALID_CREDENTIALS":
		return "invalid identifier or password"
	case "AUTH_ACCOUNT_DISABLED":
		return "account is disabled"
	case "AUTH_ACCOUNT_LOCKED":
		return "account is temporarily locked"
	case "SESSION_NOT_FOUND", "COOKIE_MISSING", "COOKIE_INVALID":
		return "not authenticated"
	case "RESET_TOKEN_INVALID":
		return "invalid or expired token"
	case "SCOPE_NOT_FOUND":
		return "unknown scope"
	default:
		return "internal error"
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response body", slog.String("error", err.Error()))
	}
}

// writeError translates a domain error into an HTTP error response. The
// response carries only the code's fixed message; wrapped causes stay in the
// server log.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status, known := statusForCode(code)
	if !known {
		errutil.LogError(logger, "request failed", err)
		writeJSON(w, logger, status, errorBody{Error: errorDetail{
			Code:    "INTERNAL",
			Message: clientMessageForCode(""),
		}})
		return
	}
	writeJSON(w, logger, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: clientMessageForCode(code),
	}})
}

func errNotAuthenticated() error {
	return oops.Code("SESSION_NOT_FOUND").Errorf("not authenticated")
}

func scopeNotFoundError(scope auth.Scope) error {
	return oops.Code("SCOPE_NOT_FOUND").
		With("scope_type", string(scope.Type)).
		With("scope_id", scope.ID.String()).
		Errorf("unknown scope")
}

// writeBadRequest reports a request-shape problem with an explicit message.
func writeBadRequest(w http.ResponseWriter, logger *slog.Logger, message string) {
	writeJSON(w, logger, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    "BAD_REQUEST",
		Message: message,
	}})
}
