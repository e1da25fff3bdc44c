package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/logger"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// Authenticator resolves access tokens and renews expired ones.
type Authenticator interface {
	ExpiredSubject(token string) string
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
	SilentRefresh(ctx context.Context, refreshToken, expectedUserID string) (*service.SilentRefreshResult, error)
}

// Auth requires a valid access token from the Authorization header or the
// access cookie. An expired token is renewed from the refresh cookie and the
// new token is returned in both the cookie and the X-Access-Token header.
func Auth(auth Authenticator, cookies Cookies, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		token, err := accessToken(c)
		if err != nil {
			cookies.Clear(c)
			response.AbortError(c, err)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil && (token == "" || service.IsTokenExpired(err)) {
			principal, err = refresh(c, auth, cookies, expiredUserID(auth, token))
		}
		if err != nil {
			cookies.Clear(c)
			log.Debug("authentication failed", zap.String("path", c.FullPath()), zap.Error(err))
			response.AbortError(c, err)
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Set(logger.UserKey, principal.Username)
		c.Next()
	}
}

func accessToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "cabecera de autorización inválida")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	token, _ := c.Cookie(AccessCookie)
	return token, nil
}

// expiredUserID reads the subject of an expired token so the refresh cookie
// can only renew the same user's session.
func expiredUserID(auth Authenticator, token string) string {
	if token == "" {
		return ""
	}
	return auth.ExpiredSubject(token)
}

func refresh(c *gin.Context, auth Authenticator, cookies Cookies, userID string) (*models.Principal, error) {
	refreshToken, err := c.Cookie(RefreshCookie)
	if err != nil || refreshToken == "" {
		return nil, appErrors.ErrUnauthorized
	}
	res, err := auth.SilentRefresh(c.Request.Context(), refreshToken, userID)
	if err != nil {
		return nil, err
	}
	cookies.SetAccess(c, res.AccessToken, res.ExpiresAt)
	c.Header(AccessTokenHeader, res.AccessToken)
	return res.Principal, nil
}
