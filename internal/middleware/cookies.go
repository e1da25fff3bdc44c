package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// Auth cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
	// AccessTokenHeader exposes a silently refreshed access token.
	AccessTokenHeader = "X-Access-Token"
)

// Cookies writes the httpOnly auth cookies.
type Cookies struct {
	Domain string
	Secure bool
}

// NewCookies builds cookie settings. Cookies are Secure in production.
func NewCookies(cfg config.CookieConfig, env string) Cookies {
	return Cookies{Domain: cfg.Domain, Secure: cfg.Secure || env == config.EnvProduction}
}

// SetAccess writes the access token cookie.
func (k Cookies) SetAccess(c *gin.Context, token string, expires time.Time) {
	k.set(c, AccessCookie, token, expires)
}

// SetRefresh writes the refresh token cookie.
func (k Cookies) SetRefresh(c *gin.Context, token string, expires time.Time) {
	k.set(c, RefreshCookie, token, expires)
}

// Clear expires both auth cookies.
func (k Cookies) Clear(c *gin.Context) {
	k.set(c, AccessCookie, "", time.Unix(0, 0))
	k.set(c, RefreshCookie, "", time.Unix(0, 0))
}

func (k Cookies) set(c *gin.Context, name, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if value == "" || maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   k.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   k.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
