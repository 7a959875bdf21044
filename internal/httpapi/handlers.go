// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/keyline/keyline/internal/auth"
	"github.com/keyline/keyline/pkg/errutil"
)

const maxRequestBody = 1 << 20

// resetAcceptedBody is returned for every forgot-password request. The body
// must be byte-identical whether or not the account exists.
const resetAcceptedBody = `{"status":"accepted"}` + "\n"

type identifierRequest struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Username string `json:"username,omitempty"`
}

// identifier collapses the request fields into exactly one identifier.
// Zero or multiple populated fields are a request-shape error.
func (r identifierRequest) identifier() (auth.Identifier, error) {
	var ident auth.Identifier
	count := 0
	if r.Email != "" {
		ident = auth.EmailIdentifier(r.Email)
		count++
	}
	if r.Phone != "" {
		ident = auth.PhoneIdentifier(r.Phone)
		count++
	}
	if r.Username != "" {
		ident = auth.UsernameIdentifier(r.Username)
		count++
	}
	switch count {
	case 1:
		return ident, nil
	case 0:
		return auth.Identifier{}, errors.New("exactly one of email, phone, or username is required")
	default:
		return auth.Identifier{}, errors.New("only one of email, phone, or username may be set")
	}
}

type scopeRequest struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
}

func (r scopeRequest) scope() (auth.Scope, error) {
	scopeType, err := auth.ParseScopeType(r.ScopeType)
	if err != nil {
		return auth.Scope{}, errors.New("scope_type must be tenant or environment")
	}
	scopeID, err := parseULID(r.ScopeID)
	if err != nil {
		return auth.Scope{}, errors.New("scope_id must be a valid ULID")
	}
	return auth.Scope{Type: scopeType, ID: scopeID}, nil
}

type loginRequest struct {
	identifierRequest
	scopeRequest
	Password string `json:"password"`
}

type sessionResponse struct {
	ID           string    `json:"id"`
	AccountType  string    `json:"account_type"`
	AccountID    string    `json:"account_id"`
	ScopeType    string    `json:"scope_type"`
	ScopeID      string    `json:"scope_id"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func toSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		ID:           s.ID.String(),
		AccountType:  string(s.AccountType),
		AccountID:    s.AccountID.String(),
		ScopeType:    string(s.ScopeType),
		ScopeID:      s.ScopeID.String(),
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
		ExpiresAt:    s.ExpiresAt,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, s.logger, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	ident, err := req.identifier()
	if err != nil {
		writeBadRequest(w, s.logger, err.Error())
		return
	}
	scope, err := req.scope()
	if err != nil {
		writeBadRequest(w, s.logger, err.Error())
		return
	}

	exists, err := s.scopes.ScopeExists(r.Context(), scope)
	if err != nil {
		s.recordLogin("error")
		writeError(w, s.logger, err)
		return
	}
	if !exists {
		writeError(w, s.logger, scopeNotFoundError(scope))
		return
	}

	session, token, err := s.auth.Login(r.Context(), ident, req.Password, scope, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		switch errutil.Code(err) {
		case "AUTH_INVALID_CREDENTIALS":
			s.recordLogin("invalid_credentials")
		case "AUTH_ACCOUNT_DISABLED":
			s.recordLogin("disabled")
		case "AUTH_ACCOUNT_LOCKED":
			s.recordLogin("locked")
		default:
			s.recordLogin("error")
		}
		writeError(w, s.logger, err)
		return
	}

	s.recordLogin("success")
	s.cookies.Set(w, token, session.ExpiresAt)
	writeJSON(w, s.logger, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// The session middleware already authenticated the cookie, so a missing
	// token here is a programming error, not a client one.
	token, err := s.cookies.Token(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	// Server-side revocation must succeed before the client-held cookie is
	// cleared; otherwise the session would outlive the cookie.
	if err := s.auth.Signout(r.Context(), token); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.recordRevoked("signout", 1)

	s.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, s.logger, errNotAuthenticated())
		return
	}

	count, err := s.auth.SignoutAll(r.Context(), session.AccountType, session.AccountID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.recordRevoked("signout_all", count)
	s.cookies.Clear(w)
	writeJSON(w, s.logger, http.StatusOK, map[string]int64{"revoked": count})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, s.logger, errNotAuthenticated())
		return
	}
	writeJSON(w, s.logger, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, s.logger, errNotAuthenticated())
		return
	}

	sessions, err := s.auth.ListSessions(r.Context(), session.AccountType, session.AccountID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

type forgotPasswordRequest struct {
	identifierRequest
	scopeRequest
}

// handleForgotPassword accepts a reset request. The response is identical
// whether or not an account matches, so the endpoint cannot be used to probe
// for accounts. Internal failures after the lookup are logged, never surfaced.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	ident, err := req.identifier()
	if err != nil {
		writeBadRequest(w, s.logger, err.Error())
		return
	}
	scope, err := req.scope()
	if err != nil {
		writeBadRequest(w, s.logger, err.Error())
		return
	}

	account, err := s.directory.FindByIdentifier(r.Context(), ident, scope)
	if err == nil && !account.Disabled {
		reset, token, reqErr := s.resets.RequestReset(r.Context(), account.Type, account.ID)
		if reqErr != nil {
			errutil.LogError(s.logger, "failed to issue reset token", reqErr)
		} else {
			s.recordReset("requested")
			ref := auth.AccountRef{Type: account.Type, ID: account.ID}
			if sendErr := s.notifier.SendResetToken(r.Context(), ref, token, reset.ExpiresAt); sendErr != nil {
				errutil.LogError(s.logger, "failed to deliver reset token", sendErr)
			}
		}
	} else if err != nil && !errors.Is(err, auth.ErrNotFound) {
		errutil.LogError(s.logger, "account lookup failed during reset request", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if _, err := w.Write([]byte(resetAcceptedBody)); err != nil {
		s.logger.Error("failed to write response body", "error", err.Error())
	}
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.resets.ResetPassword(r.Context(), req.Token, req.Password, s.updater); err != nil {
		s.recordReset("rejected")
		writeError(w, s.logger, err)
		return
	}

	s.recordReset("completed")
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "password_updated"})
}
