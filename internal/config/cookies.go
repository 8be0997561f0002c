package config

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const TokenCookie = "token"

var ErrNoToken = errors.New("no session token")

type Cookies struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	jwt      *JWT
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Path:     "/",
		Value:    "delete",
		MaxAge:   -1,
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *Cookies) Refresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Path:     "/",
		Value:    token,
		Expires:  time.Now().Add(c.jwt.tokenLifetime),
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// ParseSessionClaims reads the session token from the Authorization header
// or, failing that, from the token cookie. Browsers cannot set headers on a
// WebSocket handshake, hence the cookie.
func (c *Cookies) ParseSessionClaims(r *http.Request) (*SessionClaims, error) {
	tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		cookie, err := r.Cookie(TokenCookie)
		if err != nil {
			return nil, ErrNoToken
		}
		tokenString = cookie.Value
	}
	return c.jwt.ParseSessionClaims(strings.TrimSpace(tokenString))
}
