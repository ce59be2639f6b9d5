package cookies

import (
	"net/http"
	"time"

	"auth_gateway/internal/models"
)

const (
	Access  = "accessToken"
	Refresh = "refreshToken"
	Reset   = "resetToken"
)

// Jar writes the auth cookies. All of them are HttpOnly, SameSite=Strict and
// scoped to "/"; Secure follows the config and is always on in prod.
type Jar struct {
	Secure bool
	Domain string

	now func() time.Time
}

func NewJar(secure bool, domain string) Jar {
	return Jar{Secure: secure, Domain: domain, now: time.Now}
}

func (j Jar) SetSession(w http.ResponseWriter, pair models.TokenPair) {
	j.set(w, Access, pair.AccessToken, pair.AccessExpiresAt)
	j.set(w, Refresh, pair.RefreshToken, pair.RefreshExpiresAt)
}

func (j Jar) ClearSession(w http.ResponseWriter) {
	j.clear(w, Access)
	j.clear(w, Refresh)
}

func (j Jar) SetReset(w http.ResponseWriter, token string, ttl time.Duration) {
	j.set(w, Reset, token, j.clock().Add(ttl))
}

func (j Jar) ClearReset(w http.ResponseWriter) {
	j.clear(w, Reset)
}

// Read returns the cookie value or "" when absent.
func Read(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	return c.Value
}

func (j Jar) set(w http.ResponseWriter, name, value string, expires time.Time) {
	maxAge := int(expires.Sub(j.clock()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j Jar) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   j.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j Jar) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}
