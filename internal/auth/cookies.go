package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie carrying the token
const CookieName = "token"

// CookieSettings controls how the session cookie is written
type CookieSettings struct {
	Domain string
	TTL    time.Duration
}

// SetAuthCookie writes the session token as an HttpOnly, Secure, SameSite=None
// cookie so the cross-site frontend can send it with credentialed requests.
func SetAuthCookie(w http.ResponseWriter, token string, expiresAt time.Time, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(settings.TTL.Seconds()),
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearAuthCookie expires the session cookie with the same attributes it was set with
func ClearAuthCookie(w http.ResponseWriter, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// GetTokenFromCookie returns the session token or http.ErrNoCookie
func GetTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	if cookie.Value == "" {
		return "", http.ErrNoCookie
	}
	return cookie.Value, nil
}
