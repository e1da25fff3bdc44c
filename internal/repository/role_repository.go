package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const roleColumns = `id, name, description, is_system, created_at, updated_at, deleted_at`

// RoleRepository manages roles, permissions and their bindings.
type RoleRepository struct {
	base
}

// NewRoleRepository creates a RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{base{db: db}}
}

// List returns all live roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.selectAll(ctx, &roles, `SELECT `+roleColumns+` FROM roles WHERE deleted_at IS NULL ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// FindByID returns a live role.
func (r *RoleRepository) FindByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := r.get(ctx, &role, `SELECT `+roleColumns+` FROM roles WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &role, nil
}

// NameExists reports whether a live role other than excludeID uses name.
func (r *RoleRepository) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM roles WHERE LOWER(name) = LOWER($1) AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check role name: %w", err)
	}
	return exists, nil
}

// CountExisting returns how many of ids are live roles.
func (r *RoleRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM roles WHERE deleted_at IS NULL AND id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.get(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return total, nil
}

// Create inserts a custom role.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	query := `INSERT INTO roles (id, name, description, is_system, created_at, updated_at)
VALUES (:id, :name, :description, :is_system, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// Update persists name and description.
func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = time.Now().UTC()
	query := `UPDATE roles SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// SoftDelete removes a role and its bindings.
func (r *RoleRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
		return fmt.Errorf("unbind role users: %w", err)
	}
	if _, err := r.exec(ctx, `UPDATE roles SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// CountUsers returns the number of live users holding the role.
func (r *RoleRepository) CountUsers(ctx context.Context, roleID string) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM user_roles ur JOIN users u ON u.id = ur.user_id WHERE ur.role_id = $1 AND u.deleted_at IS NULL`
	if err := r.get(ctx, &total, query, roleID); err != nil {
		return 0, fmt.Errorf("count role users: %w", err)
	}
	return total, nil
}

// Permissions returns the permissions granted to a role.
func (r *RoleRepository) Permissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	query := `SELECT p.id, p.module, p.action, p.description, p.created_at
FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1 ORDER BY p.module, p.action`
	var perms []models.Permission
	if err := r.selectAll(ctx, &perms, query, roleID); err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}
	return perms, nil
}

// ListPermissions returns the permission catalogue.
func (r *RoleRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := r.selectAll(ctx, &perms, `SELECT id, module, action, description, created_at FROM permissions ORDER BY module, action`); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

// CountPermissions returns how many of ids exist.
func (r *RoleRepository) CountPermissions(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM permissions WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.get(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count permissions: %w", err)
	}
	return total, nil
}

// ReplacePermissions swaps the role's grants for permissionIDs.
func (r *RoleRepository) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if _, err := r.exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	for _, id := range permissionIDs {
		if _, err := r.exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, id); err != nil {
			return fmt.Errorf("grant permission: %w", err)
		}
	}
	return nil
}
