package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmcleod/keyrelay/session"
)

// The session is split across two httpOnly cookies: the signed token and
// the encrypted credential blob. The pair is atomic — if either half is
// missing or unreadable the request is treated as having no session.
const (
	sessionCookieName    = "session-token"
	credentialCookieName = "encrypted-credential"

	cookieMaxAge = 86400 // seconds; matches the 24h token lifetime
)

var errNoSession = errors.New("no valid session")

// writeSessionCookies sets both halves of the session pair. Neither is
// readable by client script.
func writeSessionCookies(w http.ResponseWriter, r *http.Request, token, blob string) {
	secure := requestIsSecure(r)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   cookieMaxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookieName,
		Value:    blob,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   cookieMaxAge,
	})
}

// clearSessionCookies removes both halves of the session pair.
func clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	secure := requestIsSecure(r)
	for _, name := range []string{sessionCookieName, credentialCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

// sessionFromRequest verifies the cookie pair and returns the session
// metadata plus the still-encrypted credential blob. It returns
// session.ErrExpired for a well-signed but stale token so callers can
// clear the pair, and errNoSession when either cookie is absent.
func (a *API) sessionFromRequest(r *http.Request) (*session.Session, string, error) {
	tokenCookie, err := r.Cookie(sessionCookieName)
	if err != nil || tokenCookie.Value == "" {
		return nil, "", errNoSession
	}
	blobCookie, err := r.Cookie(credentialCookieName)
	if err != nil || blobCookie.Value == "" {
		return nil, "", errNoSession
	}

	sess, err := a.sessions.Verify(tokenCookie.Value)
	if err != nil {
		return nil, "", err
	}
	return sess, blobCookie.Value, nil
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
