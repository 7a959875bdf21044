// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/keyline/keyline/internal/auth"
)

type contextKey int

const sessionContextKey contextKey = iota

// sessionFrom returns the authenticated session stored by requireSession.
func sessionFrom(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*auth.Session)
	return s, ok
}

// requireSession authenticates the request from the session cookie and stores
// the validated session in the request context. Validation also refreshes the
// session's last-active timestamp.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := s.cookies.Token(r)
		if err != nil {
			s.recordValidation("not_found")
			writeError(w, s.logger, err)
			return
		}

		session, err := s.auth.ValidateSession(r.Context(), token)
		if err != nil {
			s.recordValidationError(err)
			writeError(w, s.logger, err)
			return
		}
		s.recordValidation("valid")

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
