package models

import "time"

// System role names seeded by migrations.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "administrador"
	RoleSecretary  = "secretaria"
	RoleTeacher    = "docente"
	RoleStudent    = "estudiante"
	RoleParent     = "padre"
)

// Permission modules.
const (
	ModuleUsers          = "usuarios"
	ModuleRoles          = "roles"
	ModuleAudit          = "auditoria"
	ModulePeriods        = "periodos"
	ModuleStructure      = "estructura"
	ModuleStudents       = "estudiantes"
	ModuleGuardians      = "tutores"
	ModuleTeachers       = "docentes"
	ModuleEnrollments    = "matriculas"
	ModuleVacation       = "vacacional"
	ModulePreEnrollments = "preinscripciones"
	ModuleAuth           = "autenticacion"
)

// Permission actions.
const (
	ActionRead           = "leer"
	ActionCreate         = "crear"
	ActionUpdate         = "actualizar"
	ActionDelete         = "eliminar"
	ActionUnlock         = "desbloquear"
	ActionVerifyDocs     = "verificar_documentos"
	ActionExport         = "exportar"
	ActionVerifyPayment  = "verificar_pago"
	ActionReview         = "revisar"
	ActionConvert        = "convertir"
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionAccessDenied   = "acceso_denegado"
	ActionChangeStatus   = "cambiar_estado"
	ActionTransfer       = "transferir"
	ActionUpload         = "subir_archivo"
	ActionResetPassword  = "restablecer_password"
	ActionAssignRoles    = "asignar_roles"
	ActionChangePassword = "cambiar_password"
)

// PermissionName renders the canonical module.action form.
func PermissionName(module, action string) string {
	return module + "." + action
}

// Role groups permissions.
type Role struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	IsSystem    bool       `db:"is_system" json:"is_system"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// RoleDetail is a role with its permissions.
type RoleDetail struct {
	Role
	Permissions []Permission `json:"permissions"`
}

// Permission is a single module.action grant.
type Permission struct {
	ID          string    `db:"id" json:"id"`
	Module      string    `db:"module" json:"module"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Name returns the canonical permission name.
func (p Permission) Name() string {
	return PermissionName(p.Module, p.Action)
}

// RoleRequest is the payload for creating or updating a role.
type RoleRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=60"`
	Description string `json:"description" validate:"max=500"`
}

// AssignPermissionsRequest replaces the permissions of a role.
type AssignPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"required,dive,uuid"`
}
