package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/config"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
	"github.com/noah-isme/school-admin-api/pkg/textutil"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Count(ctx context.Context) (int, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error
	RoleNames(ctx context.Context, userID string) ([]string, error)
	ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error
	AssignRoleByName(ctx context.Context, userID, roleName string) error
}

type roleLookup interface {
	CountExisting(ctx context.Context, ids []string) (int, error)
}

type sessionRevoker interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// UserService handles account administration.
type UserService struct {
	repo       userRepository
	roles      roleLookup
	sessions   sessionRevoker
	tx         txRunner
	audit      auditRecorder
	notifier   notifier
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, roles roleLookup, sessions sessionRevoker, tx txRunner, audit auditRecorder, notify notifier, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	return &UserService{
		repo:       repo,
		roles:      roles,
		sessions:   sessions,
		tx:         tx,
		audit:      audit,
		notifier:   notify,
		validator:  defaultValidator(validate),
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

// List returns paginated users with their role names.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar los usuarios")
	}
	details := make([]models.UserDetail, 0, len(users))
	for _, u := range users {
		roles, err := s.repo.RoleNames(ctx, u.ID)
		if err != nil {
			return nil, nil, appErrors.Internal(err, "no se pudieron cargar los roles")
		}
		details = append(details, models.UserDetail{User: u, Roles: roles})
	}
	return details, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user with role names.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserDetail, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "usuario no encontrado")
	}
	roles, err := s.repo.RoleNames(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron cargar los roles")
	}
	return &models.UserDetail{User: *user, Roles: roles}, nil
}

// Create adds an account with an initial role set.
func (s *UserService) Create(ctx context.Context, meta models.RequestMeta, req models.CreateUserRequest) (*models.UserDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	exists, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar el nombre de usuario")
	}
	if exists {
		return nil, conflict("el nombre de usuario ya está registrado")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	roleIDs := uniqueStrings(req.RoleIDs)
	if err := s.ensureRolesExist(ctx, roleIDs); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo cifrar la contraseña")
	}
	user := &models.User{
		Username:     username,
		Email:        models.StringPtr(email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, user); err != nil {
			return writeError(err, "no se pudo crear el usuario", "el nombre de usuario o correo ya está en uso")
		}
		if len(roleIDs) > 0 {
			if err := s.repo.ReplaceRoles(ctx, user.ID, roleIDs); err != nil {
				return appErrors.Internal(err, "no se pudieron asignar los roles")
			}
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo crear el usuario")
	}

	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleUsers, user.ID, "usuario creado: "+user.Username, nil, user))
	return s.Get(ctx, user.ID)
}

// Update edits email, name and active flag. Deactivating closes every session.
func (s *UserService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.UpdateUserRequest) (*models.UserDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "usuario no encontrado")
	}
	before := *user

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
		user.Email = models.StringPtr(email)
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.IsActive != nil {
		if !*req.IsActive && meta.Principal != nil && meta.Principal.UserID == id {
			return nil, invalid("no puede desactivar su propia cuenta")
		}
		user.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el usuario")
	}
	if before.IsActive && !user.IsActive {
		s.revokeSessions(ctx, id)
	}

	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleUsers, id, "usuario actualizado: "+user.Username, before, user))
	return s.Get(ctx, id)
}

// Delete soft deletes an account and closes its sessions.
func (s *UserService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	if meta.Principal != nil && meta.Principal.UserID == id {
		return invalid("no puede eliminar su propia cuenta")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "usuario no encontrado")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el usuario")
	}
	s.revokeSessions(ctx, id)
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleUsers, id, "usuario eliminado: "+user.Username, user, nil))
	return nil
}

// AssignRoles replaces the roles of a user.
func (s *UserService) AssignRoles(ctx context.Context, meta models.RequestMeta, id string, req models.AssignRolesRequest) (*models.UserDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roleIDs := uniqueStrings(req.RoleIDs)
	if err := s.ensureRolesExist(ctx, roleIDs); err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.ReplaceRoles(ctx, id, roleIDs)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron asignar los roles")
	}
	after, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit(meta, models.ActionAssignRoles, models.ModuleUsers, id, "roles asignados a "+after.Username,
		map[string][]string{"roles": before.Roles}, map[string][]string{"roles": after.Roles}))
	return after, nil
}

// Unlock clears the lockout window and the failure counter.
func (s *UserService) Unlock(ctx context.Context, meta models.RequestMeta, id string) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "usuario no encontrado")
	}
	if err := s.repo.Unlock(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo desbloquear el usuario")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUnlock, models.ModuleUsers, id, "usuario desbloqueado: "+user.Username, nil, nil))
	return nil
}

// ResetPassword sets a temporary password that must be changed on next login.
func (s *UserService) ResetPassword(ctx context.Context, meta models.RequestMeta, id string, req models.AdminResetPasswordRequest) (*models.AdminResetPasswordResponse, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "usuario no encontrado")
	}
	password := req.NewPassword
	if password == "" {
		if password, err = textutil.RandomPassword(12); err != nil {
			return nil, appErrors.Internal(err, "no se pudo generar la contraseña")
		}
	}
	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo cifrar la contraseña")
	}
	if err := s.repo.UpdatePassword(ctx, id, hash, true); err != nil {
		return nil, appErrors.Internal(err, "no se pudo restablecer la contraseña")
	}
	s.revokeSessions(ctx, id)

	s.notifier.Notify(ctx, &mailer.Message{
		To:       recipient(user.FullName, models.StringValue(user.Email)),
		Subject:  "Restablecimiento de contraseña",
		Template: mailer.TemplatePasswordReset,
		Data: map[string]string{
			"FullName": user.FullName,
			"Username": user.Username,
			"Password": password,
		},
	})
	s.audit.Record(ctx, audit(meta, models.ActionResetPassword, models.ModuleUsers, id, "contraseña restablecida: "+user.Username, nil, nil))
	return &models.AdminResetPasswordResponse{TemporaryPassword: password}, nil
}

// BootstrapAdmin creates the first super admin when the users table is empty.
func (s *UserService) BootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return appErrors.Internal(err, "no se pudo contar los usuarios")
	}
	if count > 0 {
		return nil
	}
	hash, err := hashPassword(cfg.AdminPassword, s.bcryptCost)
	if err != nil {
		return appErrors.Internal(err, "no se pudo cifrar la contraseña")
	}
	user := &models.User{
		Username:           strings.ToLower(cfg.AdminUsername),
		Email:              models.StringPtr(strings.ToLower(cfg.AdminEmail)),
		PasswordHash:       hash,
		FullName:           "Administrador del sistema",
		IsActive:           true,
		MustChangePassword: true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, user); err != nil {
			return err
		}
		return s.repo.AssignRoleByName(ctx, user.ID, models.RoleSuperAdmin)
	})
	if err != nil {
		return appErrors.Internal(err, "no se pudo crear el administrador inicial")
	}
	s.logger.Info("bootstrap super admin created", zap.String("username", user.Username))
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	if email == "" {
		return nil
	}
	taken, err := s.repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el correo")
	}
	if taken {
		return conflict("el correo electrónico ya está registrado")
	}
	return nil
}

func (s *UserService) ensureRolesExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.roles.CountExisting(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "no se pudieron verificar los roles")
	}
	if n != len(ids) {
		return invalid("uno o más roles no existen")
	}
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke user sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
