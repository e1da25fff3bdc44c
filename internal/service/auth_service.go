package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error
	RoleNames(ctx context.Context, userID string) ([]string, error)
	PermissionNames(ctx context.Context, userID string) ([]string, error)
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error)
	Rotate(ctx context.Context, id, jti, refreshHash string, expiresAt time.Time) error
	Touch(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID, id string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type rateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	BcryptCost         int
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	LoginRateLimit     int
	LoginRateWindow    time.Duration
}

// sessionTouchInterval throttles last_activity writes.
const sessionTouchInterval = time.Minute

// Profile is the authenticated user's own view.
type Profile struct {
	models.UserDetail
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id"`
}

// SilentRefreshResult is handed to the auth middleware after an expired
// access token was renewed from the refresh cookie.
type SilentRefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Principal   *models.Principal
}

// AuthService provides authentication use cases.
type AuthService struct {
	users     authUserRepository
	sessions  sessionRepository
	limiter   rateLimiter
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, sessions sessionRepository, limiter rateLimiter, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		limiter:   limiter,
		audit:     audit,
		validator: defaultValidator(validate),
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches login counters.
func (s *AuthService) WithMetrics(m *MetricsService) *AuthService {
	s.metrics = m
	return s
}

// Login authenticates by username or email and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}

	if s.limiter != nil && req.IP != "" {
		allowed, err := s.limiter.Allow(ctx, "login:"+req.IP, s.config.LoginRateLimit, s.config.LoginRateWindow)
		if err != nil {
			s.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.ObserveLogin("rate_limited")
			return nil, appErrors.ErrTooManyRequests
		}
	}

	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if !isNotFound(err) {
			return nil, appErrors.Internal(err, "no se pudo consultar el usuario")
		}
		s.loginFailed(ctx, meta, "", req.Identifier, "usuario inexistente")
		return nil, appErrors.ErrInvalidCredentials
	}

	now := s.now()
	if !user.IsActive {
		s.loginFailed(ctx, meta, user.ID, user.Username, "cuenta inactiva")
		return nil, appErrors.ErrInactiveAccount
	}
	if user.IsLocked(now) {
		s.loginFailed(ctx, meta, user.ID, user.Username, "cuenta bloqueada")
		return nil, appErrors.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		attempts := user.FailedLoginAttempts + 1
		if user.LockedUntil != nil {
			// a lock that already expired starts a fresh count
			attempts = 1
		}
		var lockedUntil *time.Time
		if s.config.MaxLoginAttempts > 0 && attempts >= s.config.MaxLoginAttempts {
			until := now.Add(s.config.LockoutDuration)
			lockedUntil = &until
		}
		if err := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
			return nil, appErrors.Internal(err, "no se pudo registrar el intento de acceso")
		}
		if lockedUntil != nil {
			s.loginFailed(ctx, meta, user.ID, user.Username, "cuenta bloqueada por intentos fallidos")
			return nil, appErrors.ErrAccountLocked
		}
		s.loginFailed(ctx, meta, user.ID, user.Username, "contraseña incorrecta")
		return nil, appErrors.ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, appErrors.Internal(err, "no se pudo registrar el acceso")
	}
	user.FailedLoginAttempts, user.LockedUntil, user.LastLogin = 0, nil, &now

	result, principal, err := s.openSession(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	meta.Principal = principal
	s.audit.Record(ctx, audit(meta, models.ActionLogin, models.ModuleAuth, user.ID, "inicio de sesión", nil, nil))
	s.metrics.ObserveLogin(models.OutcomeSuccess)
	return result, nil
}

func (s *AuthService) loginFailed(ctx context.Context, meta models.RequestMeta, userID, identifier, reason string) {
	entry := audit(meta, models.ActionLogin, models.ModuleAuth, userID, "intento de inicio de sesión: "+identifier, nil, nil)
	if userID != "" {
		entry.Actor = &models.Principal{UserID: userID}
	}
	entry.Outcome = models.OutcomeFailure
	entry.ErrorMessage = reason
	s.audit.Record(ctx, entry)
	s.metrics.ObserveLogin(models.OutcomeFailure)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*models.AuthResult, *models.Principal, error) {
	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo generar el token de actualización")
	}
	now := s.now()
	session := &models.Session{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		TokenJTI:         uuid.NewString(),
		RefreshTokenHash: HashToken(refreshToken),
		ExpiresAt:        now.Add(s.config.RefreshTokenExpiry),
		IPAddress:        ip,
		UserAgent:        userAgent,
		Device:           deviceFromUserAgent(userAgent),
		LastActivity:     now,
		CreatedAt:        now,
	}

	principal, roles, err := s.principal(ctx, user, session.ID)
	if err != nil {
		return nil, nil, err
	}
	accessToken, accessExpiry, err := s.signAccessToken(principal, session.TokenJTI)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo generar el token de acceso")
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo crear la sesión")
	}

	return &models.AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: session.ExpiresAt,
		User:             models.UserDetail{User: *user, Roles: roles},
		Permissions:      principal.Permissions,
	}, principal, nil
}

func (s *AuthService) principal(ctx context.Context, user *models.User, sessionID string) (*models.Principal, []string, error) {
	roles, err := s.users.RoleNames(ctx, user.ID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron cargar los roles")
	}
	permissions, err := s.users.PermissionNames(ctx, user.ID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron cargar los permisos")
	}
	return &models.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		SessionID:   sessionID,
		Roles:       roles,
		Permissions: permissions,
	}, roles, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the stored hash.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	session, user, err := s.sessionForRefresh(ctx, refreshToken, "")
	if err != nil {
		return nil, err
	}

	newRefresh, err := generateRefreshToken()
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el token de actualización")
	}
	principal, roles, err := s.principal(ctx, user, session.ID)
	if err != nil {
		return nil, err
	}
	jti := uuid.NewString()
	accessToken, accessExpiry, err := s.signAccessToken(principal, jti)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el token de acceso")
	}
	expiresAt := s.now().Add(s.config.RefreshTokenExpiry)
	if err := s.sessions.Rotate(ctx, session.ID, jti, HashToken(newRefresh), expiresAt); err != nil {
		return nil, appErrors.Internal(err, "no se pudo renovar la sesión")
	}

	return &models.AuthResult{
		AccessToken:      accessToken,
		RefreshToken:     newRefresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: expiresAt,
		User:             models.UserDetail{User: *user, Roles: roles},
		Permissions:      principal.Permissions,
	}, nil
}

// SilentRefresh renews an expired access token from the refresh cookie. The
// session must belong to expectedUserID when it is known.
func (s *AuthService) SilentRefresh(ctx context.Context, refreshToken, expectedUserID string) (*SilentRefreshResult, error) {
	session, user, err := s.sessionForRefresh(ctx, refreshToken, expectedUserID)
	if err != nil {
		return nil, err
	}
	principal, _, err := s.principal(ctx, user, session.ID)
	if err != nil {
		return nil, err
	}
	jti := uuid.NewString()
	accessToken, accessExpiry, err := s.signAccessToken(principal, jti)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el token de acceso")
	}
	if err := s.sessions.Rotate(ctx, session.ID, jti, session.RefreshTokenHash, s.now().Add(s.config.RefreshTokenExpiry)); err != nil {
		return nil, appErrors.Internal(err, "no se pudo renovar la sesión")
	}
	return &SilentRefreshResult{AccessToken: accessToken, ExpiresAt: accessExpiry, Principal: principal}, nil
}

func (s *AuthService) sessionForRefresh(ctx context.Context, refreshToken, expectedUserID string) (*models.Session, *models.User, error) {
	if refreshToken == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	session, err := s.sessions.FindByRefreshHash(ctx, HashToken(refreshToken))
	if err != nil {
		if !isNotFound(err) {
			return nil, nil, appErrors.Internal(err, "no se pudo consultar la sesión")
		}
		return nil, nil, appErrors.ErrSessionExpired
	}
	if !session.ExpiresAt.After(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", zap.String("session_id", session.ID), zap.Error(err))
		}
		return nil, nil, appErrors.ErrSessionExpired
	}
	if expectedUserID != "" && session.UserID != expectedUserID {
		return nil, nil, appErrors.ErrSessionExpired
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if !isNotFound(err) {
			return nil, nil, appErrors.Internal(err, "no se pudo consultar el usuario")
		}
		return nil, nil, appErrors.ErrSessionExpired
	}
	if !user.IsActive {
		return nil, nil, appErrors.ErrInactiveAccount
	}
	return session, user, nil
}

// ValidateToken parses and validates an access token returning the claims.
// Expired tokens yield an error matching jwt.ErrTokenExpired.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "token inválido")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token inválido")
	}
	return claims, nil
}

// ExpiredSubject returns the user id of a correctly signed token even when
// it has expired.
func (s *AuthService) ExpiredSubject(tokenString string) string {
	claims := &models.JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return ""
	}
	return claims.UserID
}

// Authenticate validates the token and the backing session.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateSession(ctx, claims.UserID, claims.SessionID); err != nil {
		return nil, err
	}
	principal := claims.Principal
	return &principal, nil
}

// ValidateSession checks that the session exists, is unexpired and belongs to userID.
func (s *AuthService) ValidateSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return appErrors.ErrSessionExpired
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if !isNotFound(err) {
			return appErrors.Internal(err, "no se pudo consultar la sesión")
		}
		return appErrors.ErrSessionExpired
	}
	now := s.now()
	if session.UserID != userID || !session.ExpiresAt.After(now) {
		return appErrors.ErrSessionExpired
	}
	if now.Sub(session.LastActivity) > sessionTouchInterval {
		if err := s.sessions.Touch(ctx, sessionID); err != nil {
			s.logger.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// Logout closes the caller's current session.
func (s *AuthService) Logout(ctx context.Context, meta models.RequestMeta) error {
	if meta.Principal == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.sessions.Delete(ctx, meta.Principal.SessionID); err != nil {
		return appErrors.Internal(err, "no se pudo cerrar la sesión")
	}
	s.audit.Record(ctx, audit(meta, models.ActionLogout, models.ModuleAuth, meta.Principal.UserID, "cierre de sesión", nil, nil))
	return nil
}

// LogoutAll closes every session of the caller.
func (s *AuthService) LogoutAll(ctx context.Context, meta models.RequestMeta) (int64, error) {
	if meta.Principal == nil {
		return 0, appErrors.ErrUnauthorized
	}
	n, err := s.sessions.DeleteByUser(ctx, meta.Principal.UserID)
	if err != nil {
		return 0, appErrors.Internal(err, "no se pudieron cerrar las sesiones")
	}
	s.audit.Record(ctx, audit(meta, models.ActionLogout, models.ModuleAuth, meta.Principal.UserID,
		fmt.Sprintf("cierre de todas las sesiones (%d)", n), nil, nil))
	return n, nil
}

// Me returns the caller's profile with roles and permissions.
func (s *AuthService) Me(ctx context.Context, principal *models.Principal) (*Profile, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, lookupError(err, "usuario no encontrado")
	}
	fresh, roles, err := s.principal(ctx, user, principal.SessionID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		UserDetail:  models.UserDetail{User: *user, Roles: roles},
		Permissions: fresh.Permissions,
		SessionID:   principal.SessionID,
	}, nil
}

// ChangePassword updates the caller's password and closes their other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, meta models.RequestMeta, req models.ChangePasswordRequest) error {
	if meta.Principal == nil {
		return appErrors.ErrUnauthorized
	}
	if err := validate(s.validator, req); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, meta.Principal.UserID)
	if err != nil {
		return lookupError(err, "usuario no encontrado")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return invalid("la contraseña actual es incorrecta")
	}
	hash, err := hashPassword(req.NewPassword, s.config.BcryptCost)
	if err != nil {
		return appErrors.Internal(err, "no se pudo cifrar la contraseña")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, false); err != nil {
		return appErrors.Internal(err, "no se pudo actualizar la contraseña")
	}

	sessions, err := s.sessions.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to list sessions after password change", zap.Error(err))
	}
	for _, session := range sessions {
		if session.ID == meta.Principal.SessionID {
			continue
		}
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to revoke session after password change", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	s.audit.Record(ctx, audit(meta, models.ActionChangePassword, models.ModuleAuth, user.ID, "cambio de contraseña", nil, nil))
	return nil
}

// ListSessions returns the caller's live sessions.
func (s *AuthService) ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sessions, err := s.sessions.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron listar las sesiones")
	}
	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, models.SessionView{Session: session, Current: session.ID == principal.SessionID})
	}
	return views, nil
}

// RevokeSession closes one of the caller's sessions.
func (s *AuthService) RevokeSession(ctx context.Context, meta models.RequestMeta, sessionID string) error {
	if meta.Principal == nil {
		return appErrors.ErrUnauthorized
	}
	deleted, err := s.sessions.DeleteForUser(ctx, meta.Principal.UserID, sessionID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo cerrar la sesión")
	}
	if !deleted {
		return notFound("sesión no encontrada")
	}
	s.audit.Record(ctx, audit(meta, models.ActionLogout, models.ModuleAuth, sessionID, "sesión revocada", nil, nil))
	return nil
}

func (s *AuthService) signAccessToken(principal *models.Principal, jti string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		Principal: *principal,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   principal.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IsTokenExpired reports whether err came from an expired access token.
func IsTokenExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

// HashToken returns the hex sha256 of a refresh token. Only hashes are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func deviceFromUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case lower == "":
		return "desconocido"
	case strings.Contains(lower, "android"), strings.Contains(lower, "iphone"), strings.Contains(lower, "mobile"):
		return "móvil"
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		return "tablet"
	default:
		return "escritorio"
	}
}
