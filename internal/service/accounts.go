package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/textutil"
)

const maxUsernameSuffix = 9999

type accountRepository interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	AssignRoleByName(ctx context.Context, userID, roleName string) error
}

// accountSpec describes a login to create for a person record.
type accountSpec struct {
	FirstName string
	Surname   string
	FullName  string
	Email     string
	CI        string
	Role      string
}

// accountProvisioner creates user accounts for students, guardians and
// teachers. Must run inside the caller's transaction.
type accountProvisioner struct {
	users      accountRepository
	bcryptCost int
}

func (p accountProvisioner) provision(ctx context.Context, spec accountSpec) (*models.Credentials, error) {
	username, err := p.uniqueUsername(ctx, textutil.UsernameBase(spec.FirstName, spec.Surname))
	if err != nil {
		return nil, err
	}

	password := strings.TrimSpace(spec.CI)
	if password == "" {
		if password, err = textutil.RandomPassword(10); err != nil {
			return nil, appErrors.Internal(err, "no se pudo generar la contraseña")
		}
	}
	hash, err := hashPassword(password, p.bcryptCost)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo cifrar la contraseña")
	}

	user := &models.User{
		Username:           username,
		PasswordHash:       hash,
		FullName:           spec.FullName,
		IsActive:           true,
		MustChangePassword: true,
	}
	if email := strings.ToLower(strings.TrimSpace(spec.Email)); email != "" {
		taken, err := p.users.EmailExists(ctx, email, "")
		if err != nil {
			return nil, appErrors.Internal(err, "no se pudo verificar el correo")
		}
		if !taken {
			user.Email = &email
		}
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, writeError(err, "no se pudo crear la cuenta de usuario", "el nombre de usuario o correo ya está en uso")
	}
	if err := p.users.AssignRoleByName(ctx, user.ID, spec.Role); err != nil {
		return nil, appErrors.Internal(err, "no se pudo asignar el rol")
	}
	return &models.Credentials{UserID: user.ID, Username: username, Password: password}, nil
}

// uniqueUsername appends 1, 2, ... to base until the name is free.
func (p accountProvisioner) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 1; i <= maxUsernameSuffix; i++ {
		exists, err := p.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Internal(err, "no se pudo verificar el nombre de usuario")
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", conflict("no hay nombres de usuario disponibles para " + base)
}
