package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error)
	Logout(ctx context.Context, meta models.RequestMeta) error
	LogoutAll(ctx context.Context, meta models.RequestMeta) (int64, error)
	Me(ctx context.Context, principal *models.Principal) (*service.Profile, error)
	ChangePassword(ctx context.Context, meta models.RequestMeta, req models.ChangePasswordRequest) error
	ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error)
	RevokeSession(ctx context.Context, meta models.RequestMeta, sessionID string) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookies middleware.Cookies
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookies middleware.Cookies) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by username or email. Tokens are returned as httpOnly cookies.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bind(c, &req) {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.writeTokens(c, res)
	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Refresh tokens
// @Description Rotate the refresh cookie and issue a new access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := c.Cookie(middleware.RefreshCookie)
	if err != nil || token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "no hay sesión para renovar"))
		return
	}
	res, err := h.service.Refresh(c.Request.Context(), token)
	if err != nil {
		h.cookies.Clear(c)
		response.Error(c, err)
		return
	}
	h.writeTokens(c, res)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Tags Authentication
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), meta(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.Clear(c)
	response.NoContent(c)
}

// LogoutAll godoc
// @Summary Close every session of the current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	closed, err := h.service.LogoutAll(c.Request.Context(), meta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.Clear(c)
	response.JSON(c, http.StatusOK, gin.H{"closed_sessions": closed}, nil)
}

// Me godoc
// @Summary Get current user
// @Description Profile with roles and permissions
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	profile, err := h.service.Me(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change the password of the current user. Other sessions are closed.
// @Tags Authentication
// @Accept json
// @Param payload body models.ChangePasswordRequest true "Change password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), meta(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sessions godoc
// @Summary List own sessions
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// RevokeSession godoc
// @Summary Revoke one of the own sessions
// @Tags Authentication
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /auth/sessions/{id} [delete]
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	if err := h.service.RevokeSession(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *AuthHandler) writeTokens(c *gin.Context, res *models.AuthResult) {
	h.cookies.SetAccess(c, res.AccessToken, res.AccessExpiresAt)
	h.cookies.SetRefresh(c, res.RefreshToken, res.RefreshExpiresAt)
}
