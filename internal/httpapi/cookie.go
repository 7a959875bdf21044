// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// CookieCodec signs and verifies the session cookie. The cookie value is the
// plaintext session token plus an HMAC-SHA256 signature, joined by a dot.
// Signing means a forged or truncated cookie is rejected before any database
// lookup happens.
type CookieCodec struct {
	name   string
	secret []byte
	secure bool
}

// NewCookieCodec creates a cookie codec. The secret must be non-empty; cookie
// integrity depends on it staying private.
func NewCookieCodec(name, secret string, secure bool) (*CookieCodec, error) {
	if name == "" {
		return nil, oops.Code("INVALID_CONFIG").Errorf("cookie name required")
	}
	if len(secret) < 32 {
		return nil, oops.Code("INVALID_CONFIG").Errorf("cookie secret must be at least 32 bytes, got %d", len(secret))
	}
	return &CookieCodec{name: name, secret: []byte(secret), secure: secure}, nil
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string { return c.name }

func (c *CookieCodec) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode returns the signed cookie value for a session token.
func (c *CookieCodec) Encode(token string) string {
	return token + "." + c.sign(token)
}

// Decode verifies the signature on a cookie value and returns the embedded
// session token. Tampered and malformed values both fail the same way.
func (c *CookieCodec) Decode(value string) (string, error) {
	token, sig, found := strings.Cut(value, ".")
	if !found || token == "" || sig == "" {
		return "", oops.Code("COOKIE_INVALID").Errorf("malformed session cookie")
	}
	expected := c.sign(token)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", oops.Code("COOKIE_INVALID").Errorf("session cookie signature mismatch")
	}
	return token, nil
}

// Set writes the session cookie carrying the given token.
func (c *CookieCodec) Set(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    c.Encode(token),
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie. Called only after server-side revocation
// succeeds; clearing first would strand a live session.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token extracts and verifies the session token from the request cookie.
func (c *CookieCodec) Token(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", oops.Code("COOKIE_MISSING").Errorf("no session cookie")
	}
	return c.Decode(cookie.Value)
}
