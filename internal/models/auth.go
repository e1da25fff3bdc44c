package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user. Identifier is a
// username or an email.
type LoginRequest struct {
	Identifier string `json:"username" validate:"required,max=160"`
	Password   string `json:"password" validate:"required,max=72"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// AuthResult is returned by login and refresh. Tokens are written as cookies
// by the handler and never serialised in the body.
type AuthResult struct {
	AccessToken      string     `json:"-"`
	RefreshToken     string     `json:"-"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
	User             UserDetail `json:"user"`
	Permissions      []string   `json:"permissions"`
}

// ChangePasswordRequest payload for updating the own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// Principal is the authenticated caller resolved at login.
type Principal struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	SessionID   string   `json:"sid"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the principal holds any of roles.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsSuperAdmin reports whether the principal bypasses authorization.
func (p *Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleSuperAdmin)
}

// Can reports whether the principal holds any of the permission names.
func (p *Principal) Can(permissions ...string) bool {
	if p == nil {
		return false
	}
	if p.IsSuperAdmin() {
		return true
	}
	for _, have := range p.Permissions {
		for _, want := range permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Principal
	jwt.RegisteredClaims
}

// Session represents a persisted login.
type Session struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	TokenJTI         string    `db:"token_jti" json:"-"`
	RefreshTokenHash string    `db:"refresh_token_hash" json:"-"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	IPAddress        string    `db:"ip_address" json:"ip_address"`
	UserAgent        string    `db:"user_agent" json:"user_agent"`
	Device           string    `db:"device" json:"device"`
	LastActivity     time.Time `db:"last_activity" json:"last_activity"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// SessionView marks the session that belongs to the current request.
type SessionView struct {
	Session
	Current bool `json:"current"`
}
