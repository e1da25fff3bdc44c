package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type authServiceMock struct {
	loginReq     models.LoginRequest
	loginErr     error
	refreshToken string
	loggedOut    bool
}

func (m *authServiceMock) result() *models.AuthResult {
	return &models.AuthResult{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
		User:             models.UserDetail{User: models.User{ID: "u1", Username: "admin"}},
	}
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.result(), nil
}

func (m *authServiceMock) Refresh(_ context.Context, token string) (*models.AuthResult, error) {
	m.refreshToken = token
	return m.result(), nil
}

func (m *authServiceMock) Logout(context.Context, models.RequestMeta) error {
	m.loggedOut = true
	return nil
}

func (m *authServiceMock) LogoutAll(context.Context, models.RequestMeta) (int64, error) {
	return 3, nil
}

func (m *authServiceMock) Me(_ context.Context, p *models.Principal) (*service.Profile, error) {
	if p == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return &service.Profile{Permissions: p.Permissions, SessionID: p.SessionID}, nil
}

func (m *authServiceMock) ChangePassword(context.Context, models.RequestMeta, models.ChangePasswordRequest) error {
	return nil
}

func (m *authServiceMock) ListSessions(context.Context, *models.Principal) ([]models.SessionView, error) {
	return []models.SessionView{}, nil
}

func (m *authServiceMock) RevokeSession(context.Context, models.RequestMeta, string) error {
	return nil
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, ck := range w.Result().Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func TestAuthHandlerLoginSetsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, middleware.Cookies{Secure: true})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"admin","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	c.Request = req

	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", svc.loginReq.Identifier)
	assert.Equal(t, "test-agent", svc.loginReq.UserAgent)
	cookies := cookieMap(w)
	require.Contains(t, cookies, middleware.AccessCookie)
	require.Contains(t, cookies, middleware.RefreshCookie)
	assert.True(t, cookies[middleware.AccessCookie].HttpOnly)
	assert.True(t, cookies[middleware.AccessCookie].Secure)
	assert.NotContains(t, w.Body.String(), `"access"`, "tokens never go in the body")
}

func TestAuthHandlerLoginLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrAccountLocked}, middleware.Cookies{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"admin","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Login(c)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Empty(t, cookieMap(w))
}

func TestAuthHandlerRefreshRequiresCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, middleware.Cookies{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/refresh", nil)
	h.Refresh(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/refresh", nil)
	c.Request.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "old-refresh"})
	h.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "old-refresh", svc.refreshToken)
	assert.Equal(t, "refresh", cookieMap(w)[middleware.RefreshCookie].Value)
}

func TestAuthHandlerLogoutClearsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, middleware.Cookies{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/logout", nil)
	c.Set(middleware.ContextPrincipalKey, &models.Principal{UserID: "u1", SessionID: "s1"})

	h.Logout(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.loggedOut)
	cookies := cookieMap(w)
	assert.Equal(t, "", cookies[middleware.AccessCookie].Value)
	assert.Less(t, cookies[middleware.RefreshCookie].MaxAge, 0)
}
