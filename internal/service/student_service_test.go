package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
)

type mockStudents struct {
	students map[string]*models.Student
	links    []*models.StudentGuardian
	nextID   int
	failOn   string
}

func newMockStudents() *mockStudents {
	return &mockStudents{students: map[string]*models.Student{}}
}

func (m *mockStudents) List(context.Context, models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudents) FindByID(_ context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockStudents) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if models.StringValue(s.UserID) == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudents) CIExists(_ context.Context, ci, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.ID != excludeID && models.StringValue(s.CI) == ci {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudents) Create(_ context.Context, s *models.Student) error {
	if m.failOn == "create" {
		return fmt.Errorf("insert failed")
	}
	m.nextID++
	s.ID = fmt.Sprintf("student-%d", m.nextID)
	cp := *s
	m.students[s.ID] = &cp
	return nil
}

func (m *mockStudents) Update(_ context.Context, s *models.Student) error {
	cp := *s
	m.students[s.ID] = &cp
	return nil
}

func (m *mockStudents) SoftDelete(_ context.Context, id string) error {
	delete(m.students, id)
	return nil
}

func (m *mockStudents) Guardians(context.Context, string) ([]models.StudentGuardianDetail, error) {
	details := make([]models.StudentGuardianDetail, 0, len(m.links))
	for _, l := range m.links {
		details = append(details, models.StudentGuardianDetail{StudentGuardian: *l})
	}
	return details, nil
}

func (m *mockStudents) LinkGuardian(_ context.Context, link *models.StudentGuardian) error {
	m.links = append(m.links, link)
	return nil
}

func (m *mockStudents) GuardianLinked(_ context.Context, studentID, guardianID string) (bool, error) {
	for _, l := range m.links {
		if l.StudentID == studentID && l.GuardianID == guardianID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudents) UnlinkGuardian(_ context.Context, studentID, guardianID string) (bool, error) {
	for i, l := range m.links {
		if l.StudentID == studentID && l.GuardianID == guardianID {
			m.links = append(m.links[:i], m.links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type stubGuardianFinder map[string]*models.Guardian

func (s stubGuardianFinder) FindByID(_ context.Context, id string) (*models.Guardian, error) {
	if g, ok := s[id]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

type stubEnrollmentLister struct{ total int }

func (s stubEnrollmentLister) List(context.Context, models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, s.total, nil
}

type studentFixture struct {
	svc      *StudentService
	students *mockStudents
	users    *fakeUsers
	notify   *fakeNotifier
	tx       *fakeTx
	uploader *fakeUploader
}

func newStudentFixture(existingUsers ...models.User) studentFixture {
	f := studentFixture{
		students: newMockStudents(),
		users:    newFakeUsers(existingUsers...),
		notify:   &fakeNotifier{},
		tx:       &fakeTx{},
		uploader: &fakeUploader{},
	}
	f.svc = NewStudentService(StudentServiceDeps{
		Students:    f.students,
		Guardians:   stubGuardianFinder{"g-1": {ID: "g-1", FirstName: "Rosa"}},
		Enrollments: stubEnrollmentLister{},
		Users:       f.users,
		Sequences:   &fakeSequence{},
		Tx:          f.tx,
		Storage:     f.uploader,
		Notifier:    f.notify,
		BcryptCost:  bcrypt.MinCost,
	})
	f.svc.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestStudentServiceCreateWithAccount(t *testing.T) {
	f := newStudentFixture(models.User{ID: "u-old", Username: "joseperez"})

	res, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{
		FirstName: "José Luis", PaternalSurname: "Pérez", MaternalSurname: "Mamani",
		CI: "7654321", Email: "jose@correo.bo", CreateAccount: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "EST-2025-0001", res.Code)
	require.NotNil(t, res.Credentials)
	assert.Equal(t, "joseperez1", res.Credentials.Username)
	assert.Equal(t, "7654321", res.Credentials.Password)
	assert.Equal(t, res.Credentials.UserID, models.StringValue(res.UserID))

	account := f.users.users[res.Credentials.UserID]
	assert.True(t, account.MustChangePassword)
	assert.Equal(t, []string{models.RoleStudent}, f.users.roles[account.ID])

	require.Len(t, f.notify.messages, 1)
	assert.Equal(t, mailer.TemplateWelcome, f.notify.messages[0].Template)
}

func TestStudentServiceCodesIncrease(t *testing.T) {
	f := newStudentFixture()

	first, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Ana", PaternalSurname: "Quispe"})
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Luis", PaternalSurname: "Quispe"})
	require.NoError(t, err)

	assert.Equal(t, "EST-2025-0001", first.Code)
	assert.Equal(t, "EST-2025-0002", second.Code)
	assert.Nil(t, first.Credentials)
	assert.Empty(t, f.notify.messages)
}

func TestStudentServiceDuplicateCI(t *testing.T) {
	f := newStudentFixture()
	_, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Ana", PaternalSurname: "Quispe", CI: "123"})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Eva", PaternalSurname: "Quispe", CI: "123"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestStudentServiceCreateRollsBackAccountOnFailure(t *testing.T) {
	f := newStudentFixture()
	f.students.failOn = "create"

	_, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Ana", PaternalSurname: "Quispe", CreateAccount: true})
	require.Error(t, err)
	assert.Equal(t, 1, f.tx.rolledBack)
	assert.Empty(t, f.notify.messages)
}

func TestStudentServiceLinkGuardianTwice(t *testing.T) {
	f := newStudentFixture()
	res, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Ana", PaternalSurname: "Quispe"})
	require.NoError(t, err)

	req := models.LinkGuardianRequest{GuardianID: "8c9f5a2e-1d7b-4c53-9f0e-4b3a2d1c0e9f", Relationship: "madre"}
	_, err = f.svc.LinkGuardian(context.Background(), staffMeta(), res.ID, req)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	f.svc.guardians = stubGuardianFinder{req.GuardianID: {ID: req.GuardianID}}
	detail, err := f.svc.LinkGuardian(context.Background(), staffMeta(), res.ID, req)
	require.NoError(t, err)
	require.Len(t, detail.Guardians, 1)
	assert.True(t, detail.Guardians[0].CanPickUp)
	assert.Equal(t, 1, detail.Guardians[0].ContactPriority)

	_, err = f.svc.LinkGuardian(context.Background(), staffMeta(), res.ID, req)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestStudentServiceDeleteWithActiveEnrollment(t *testing.T) {
	f := newStudentFixture()
	res, err := f.svc.Create(context.Background(), staffMeta(), models.StudentRequest{FirstName: "Ana", PaternalSurname: "Quispe"})
	require.NoError(t, err)
	f.svc.enrollments = stubEnrollmentLister{total: 1}

	err = f.svc.Delete(context.Background(), staffMeta(), res.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}
