package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type roleRepository interface {
	List(ctx context.Context) ([]models.Role, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	NameExists(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	SoftDelete(ctx context.Context, id string) error
	CountUsers(ctx context.Context, roleID string) (int, error)
	Permissions(ctx context.Context, roleID string) ([]models.Permission, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	CountPermissions(ctx context.Context, ids []string) (int, error)
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// RoleService manages roles and their permission grants.
type RoleService struct {
	repo      roleRepository
	tx        txRunner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleService constructs a RoleService.
func NewRoleService(repo roleRepository, tx txRunner, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &RoleService{repo: repo, tx: tx, audit: audit, validator: defaultValidator(validate), logger: logger}
}

// List returns every role.
func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los roles")
	}
	return roles, nil
}

// Get returns a role with its permissions.
func (s *RoleService) Get(ctx context.Context, id string) (*models.RoleDetail, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "rol no encontrado")
	}
	perms, err := s.repo.Permissions(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron cargar los permisos")
	}
	return &models.RoleDetail{Role: *role, Permissions: perms}, nil
}

// Create adds a custom role.
func (s *RoleService) Create(ctx context.Context, meta models.RequestMeta, req models.RoleRequest) (*models.Role, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	role := &models.Role{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, writeError(err, "no se pudo crear el rol", "ya existe un rol con ese nombre")
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleRoles, role.ID, "rol creado: "+role.Name, nil, role))
	return role, nil
}

// Update edits a role. System roles keep their name.
func (s *RoleService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.RoleRequest) (*models.Role, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "rol no encontrado")
	}
	before := *role
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if role.IsSystem && name != role.Name {
		return nil, conflict("los roles del sistema no se pueden renombrar")
	}
	if err := s.ensureNameFree(ctx, name, id); err != nil {
		return nil, err
	}
	role.Name, role.Description = name, strings.TrimSpace(req.Description)
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el rol")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleRoles, id, "rol actualizado: "+role.Name, before, role))
	return role, nil
}

// Delete removes a custom role that no user holds.
func (s *RoleService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "rol no encontrado")
	}
	if role.IsSystem {
		return conflict("los roles del sistema no se pueden eliminar")
	}
	users, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el uso del rol")
	}
	if users > 0 {
		return conflict("el rol está asignado a usuarios")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el rol")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleRoles, id, "rol eliminado: "+role.Name, role, nil))
	return nil
}

// AssignPermissions replaces the permission set of a role.
func (s *RoleService) AssignPermissions(ctx context.Context, meta models.RequestMeta, id string, req models.AssignPermissionsRequest) (*models.RoleDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := uniqueStrings(req.PermissionIDs)
	if len(ids) > 0 {
		n, err := s.repo.CountPermissions(ctx, ids)
		if err != nil {
			return nil, appErrors.Internal(err, "no se pudieron verificar los permisos")
		}
		if n != len(ids) {
			return nil, invalid("uno o más permisos no existen")
		}
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.ReplacePermissions(ctx, id, ids)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron asignar los permisos")
	}
	after, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleRoles, id, "permisos asignados al rol "+after.Name,
		permissionNames(before.Permissions), permissionNames(after.Permissions)))
	return after, nil
}

// ListPermissions returns the permission catalogue.
func (s *RoleService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los permisos")
	}
	return perms, nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.NameExists(ctx, name, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el nombre del rol")
	}
	if exists {
		return conflict("ya existe un rol con ese nombre")
	}
	return nil
}

func permissionNames(perms []models.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Name())
	}
	return out
}
