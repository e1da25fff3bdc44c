package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/config"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
)

type stubRoleLookup struct{ known int }

func (s stubRoleLookup) CountExisting(_ context.Context, ids []string) (int, error) {
	if s.known < len(ids) {
		return s.known, nil
	}
	return len(ids), nil
}

type stubSessionRevoker struct{ revoked []string }

func (s *stubSessionRevoker) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.revoked = append(s.revoked, userID)
	return 1, nil
}

func newUserFixture(existing ...models.User) (*UserService, *fakeUsers, *stubSessionRevoker, *fakeNotifier) {
	users := newFakeUsers(existing...)
	sessions := &stubSessionRevoker{}
	notify := &fakeNotifier{}
	svc := NewUserService(users, stubRoleLookup{known: 10}, sessions, &fakeTx{}, nil, notify, nil, nil, bcrypt.MinCost)
	return svc, users, sessions, notify
}

func TestUserServiceCreateDuplicateUsername(t *testing.T) {
	svc, _, _, _ := newUserFixture(models.User{ID: "u1", Username: "jperez"})

	_, err := svc.Create(context.Background(), staffMeta(), models.CreateUserRequest{
		Username: "JPerez", Password: "password123", FullName: "Juan Pérez",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestUserServiceCreateAssignsRoles(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	roleID := "8c9f5a2e-1d7b-4c53-9f0e-4b3a2d1c0e9f"

	detail, err := svc.Create(context.Background(), staffMeta(), models.CreateUserRequest{
		Username: "mlopez", Email: "MLopez@Colegio.bo", Password: "password123", FullName: "María López",
		RoleIDs: []string{roleID, roleID},
	})
	require.NoError(t, err)
	assert.Equal(t, "mlopez@colegio.bo", models.StringValue(detail.Email))
	assert.True(t, detail.IsActive)
	assert.Equal(t, []string{roleID}, users.roleIDs[detail.ID])
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.users[detail.ID].PasswordHash), []byte("password123")))
}

func TestUserServiceCreateUnknownRole(t *testing.T) {
	users := newFakeUsers()
	svc := NewUserService(users, stubRoleLookup{known: 0}, nil, &fakeTx{}, nil, nil, nil, nil, bcrypt.MinCost)

	_, err := svc.Create(context.Background(), staffMeta(), models.CreateUserRequest{
		Username: "mlopez", Password: "password123", FullName: "María López",
		RoleIDs: []string{"8c9f5a2e-1d7b-4c53-9f0e-4b3a2d1c0e9f"},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Empty(t, users.users)
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	svc, _, sessions, _ := newUserFixture(models.User{ID: "u1", Username: "jperez", IsActive: true})
	inactive := false

	detail, err := svc.Update(context.Background(), staffMeta(), "u1", models.UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, detail.IsActive)
	assert.Equal(t, []string{"u1"}, sessions.revoked)
}

func TestUserServiceDeleteSelf(t *testing.T) {
	svc, _, _, _ := newUserFixture(models.User{ID: "actor-1", Username: "secretaria"})

	err := svc.Delete(context.Background(), staffMeta(), "actor-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestUserServiceResetPassword(t *testing.T) {
	email := "jperez@colegio.bo"
	svc, users, sessions, notify := newUserFixture(models.User{ID: "u1", Username: "jperez", FullName: "Juan Pérez", Email: &email})

	res, err := svc.ResetPassword(context.Background(), staffMeta(), "u1", models.AdminResetPasswordRequest{})
	require.NoError(t, err)
	assert.Len(t, res.TemporaryPassword, 12)
	assert.True(t, users.users["u1"].MustChangePassword)
	assert.Equal(t, []string{"u1"}, sessions.revoked)
	require.Len(t, notify.messages, 1)
	assert.Equal(t, mailer.TemplatePasswordReset, notify.messages[0].Template)
	assert.Equal(t, email, notify.messages[0].To[0].Address)
}

func TestUserServiceBootstrapAdmin(t *testing.T) {
	svc, users, _, _ := newUserFixture()
	cfg := config.BootstrapConfig{AdminUsername: "Admin", AdminPassword: "changeme123", AdminEmail: "admin@colegio.bo"}

	require.NoError(t, svc.BootstrapAdmin(context.Background(), cfg))
	require.Len(t, users.users, 1)
	for id, u := range users.users {
		assert.Equal(t, "admin", u.Username)
		assert.Equal(t, []string{models.RoleSuperAdmin}, users.roles[id])
	}

	require.NoError(t, svc.BootstrapAdmin(context.Background(), cfg))
	assert.Len(t, users.users, 1)
}
