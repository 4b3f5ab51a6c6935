package http

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

const csrfHeader = "X-CSRF-Token"

// CSRF implements the double-submit cookie check: mutating /api requests must
// echo the cookie value in the X-CSRF-Token header.
type CSRF struct {
	cookieName string
	secure     bool
}

func NewCSRF(cookieName string, secure bool) *CSRF {
	return &CSRF{cookieName: cookieName, secure: secure}
}

// SetCookie issues a token when the client does not have one yet.
func (c *CSRF) SetCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(c.cookieName); err != nil || cookie.Value == "" {
			token, err := newCSRFToken()
			if err != nil {
				writeFailure(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     c.cookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: false,
				Secure:   c.secure,
				SameSite: http.SameSiteStrictMode,
			})
			r.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(c.cookieName)
		header := r.Header.Get(csrfHeader)
		if err != nil || cookie.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeFailure(w, http.StatusForbidden, "Invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Token returns the token in the body so clients that cannot read cookies
// can still echo it.
func (c *CSRF) Token(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"csrfToken": cookie.Value})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
