package models

import "time"

// User represents an application account stored in the users table.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               *string    `db:"email" json:"email,omitempty"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"full_name"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	EmailVerified       bool       `db:"email_verified" json:"email_verified"`
	MustChangePassword  bool       `db:"must_change_password" json:"must_change_password"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	LastLogin           *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at" json:"-"`
}

// IsLocked reports whether the lockout window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// UserDetail is a user together with its role names.
type UserDetail struct {
	User
	Roles []string `json:"roles"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Search    string
	Role      string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=80"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	FullName string   `json:"full_name" validate:"required,max=200"`
	RoleIDs  []string `json:"role_ids" validate:"omitempty,dive,uuid"`
	IsActive *bool    `json:"is_active"`
}

// UpdateUserRequest is the payload for editing an account.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active"`
}

// AssignRolesRequest replaces the roles of a user.
type AssignRolesRequest struct {
	RoleIDs []string `json:"role_ids" validate:"required,min=1,dive,uuid"`
}

// AdminResetPasswordRequest sets a temporary password. Empty means generate one.
type AdminResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"omitempty,min=8,max=72"`
}

// AdminResetPasswordResponse returns the temporary password once.
type AdminResetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

// Credentials is a freshly provisioned account handed back to staff.
type Credentials struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}
