package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const userColumns = `id, username, email, password_hash, full_name, is_active, email_verified, must_change_password,
failed_login_attempts, locked_until, last_login, created_at, updated_at, deleted_at`

// UserRepository provides access to user accounts and their role bindings.
type UserRepository struct {
	base
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{base{db: db}}
}

// FindByID returns a non-deleted user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	if err := r.get(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIdentifier looks a user up by username or email, case-insensitively.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users
WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)) AND deleted_at IS NULL
LIMIT 1`
	if err := r.get(ctx, &user, query, strings.TrimSpace(identifier)); err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameExists reports whether username is taken by a live account.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND deleted_at IS NULL)`
	if err := r.get(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether email is used by a live account other than excludeID.
func (r *UserRepository) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// Count returns the number of live accounts.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// List returns users filtered by the provided criteria.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := newWhere("u.deleted_at IS NULL")
	where.search(filter.Search, "u.username", "u.full_name", "COALESCE(u.email, '')")
	if filter.Role != "" {
		where.add(`EXISTS (SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id AND r.name = ?)`, filter.Role)
	}
	if filter.Active != nil {
		where.add("u.is_active = ?", *filter.Active)
	}

	allowedSorts := map[string]string{
		"username":   "u.username",
		"full_name":  "u.full_name",
		"created_at": "u.created_at",
		"last_login": "u.last_login",
	}
	from := " FROM users u" + where.sql()

	query := "SELECT u.id, u.username, u.email, u.password_hash, u.full_name, u.is_active, u.email_verified, u.must_change_password, " +
		"u.failed_login_attempts, u.locked_until, u.last_login, u.created_at, u.updated_at, u.deleted_at" +
		from + orderBy(filter.SortBy, filter.SortOrder, allowedSorts, "u.created_at") + limitOffset(filter.Page, filter.PageSize)

	var users []models.User
	if err := r.selectAll(ctx, &users, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `INSERT INTO users (id, username, email, password_hash, full_name, is_active, email_verified, must_change_password, created_at, updated_at)
VALUES (:id, :username, :email, :password_hash, :full_name, :is_active, :email_verified, :must_change_password, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update persists profile fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	query := `UPDATE users SET email = :email, full_name = :full_name, is_active = :is_active, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SoftDelete marks the user deleted and deactivates it.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE users SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// RecordLoginFailure stores the failed attempt count and an optional lock.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	query := `UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(ctx, query, id, attempts, lockedUntil); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

// RecordLoginSuccess resets lockout counters and stamps last_login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

// Unlock clears the lockout state.
func (r *UserRepository) Unlock(ctx context.Context, id string) error {
	query := `UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.exec(ctx, query, id); err != nil {
		return fmt.Errorf("unlock user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error {
	query := `UPDATE users SET password_hash = $2, must_change_password = $3, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.exec(ctx, query, id, hash, mustChange); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// RoleNames returns the live role names bound to the user.
func (r *UserRepository) RoleNames(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1 AND r.deleted_at IS NULL ORDER BY r.name`
	var names []string
	if err := r.selectAll(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("user roles: %w", err)
	}
	return names, nil
}

// PermissionNames returns every module.action granted through the user's roles.
func (r *UserRepository) PermissionNames(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT DISTINCT p.module || '.' || p.action AS name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id AND r.deleted_at IS NULL
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY name`
	var names []string
	if err := r.selectAll(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("user permissions: %w", err)
	}
	return names, nil
}

// ReplaceRoles swaps the user's role bindings for roleIDs.
func (r *UserRepository) ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error {
	if _, err := r.exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := r.exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}
	}
	return nil
}

// AssignRoleByName binds a system role by name.
func (r *UserRepository) AssignRoleByName(ctx context.Context, userID, roleName string) error {
	query := `INSERT INTO user_roles (user_id, role_id)
SELECT $1, id FROM roles WHERE name = $2 AND deleted_at IS NULL
ON CONFLICT DO NOTHING`
	affected, err := r.exec(ctx, query, userID, roleName)
	if err != nil {
		return fmt.Errorf("assign role %s: %w", roleName, err)
	}
	if affected == 0 {
		var exists bool
		if err := r.get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1 AND deleted_at IS NULL)`, roleName); err != nil {
			return fmt.Errorf("lookup role %s: %w", roleName, err)
		}
		if !exists {
			return fmt.Errorf("role %s not found", roleName)
		}
	}
	return nil
}
