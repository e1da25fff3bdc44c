package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type mockTeachers struct {
	teachers    map[string]*models.Teacher
	assignments map[string]*models.TeacherAssignment
	nextID      int
}

func newMockTeachers() *mockTeachers {
	return &mockTeachers{teachers: map[string]*models.Teacher{}, assignments: map[string]*models.TeacherAssignment{}}
}

func (m *mockTeachers) List(context.Context, models.TeacherFilter) ([]models.Teacher, int, error) {
	return nil, len(m.teachers), nil
}

func (m *mockTeachers) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	t, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTeachers) CIExists(_ context.Context, ci, excludeID string) (bool, error) {
	for _, t := range m.teachers {
		if t.ID != excludeID && t.CI == ci {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeachers) Create(_ context.Context, t *models.Teacher) error {
	t.ID = uuid.NewString()
	cp := *t
	m.teachers[t.ID] = &cp
	return nil
}

func (m *mockTeachers) Update(_ context.Context, t *models.Teacher) error {
	cp := *t
	m.teachers[t.ID] = &cp
	return nil
}

func (m *mockTeachers) SoftDelete(_ context.Context, id string) error {
	delete(m.teachers, id)
	for aid, a := range m.assignments {
		if a.TeacherID == id {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *mockTeachers) ListAssignments(context.Context, models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	out := make([]models.TeacherAssignmentDetail, 0, len(m.assignments))
	for _, a := range m.assignments {
		out = append(out, models.TeacherAssignmentDetail{TeacherAssignment: *a})
	}
	return out, nil
}

func (m *mockTeachers) FindAssignment(_ context.Context, id string) (*models.TeacherAssignmentDetail, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.TeacherAssignmentDetail{TeacherAssignment: *a}, nil
}

func (m *mockTeachers) AssignmentTaken(_ context.Context, subjectID, sectionID, periodID, excludeID string) (bool, error) {
	for _, a := range m.assignments {
		if a.ID != excludeID && a.SubjectID == subjectID && a.SectionID == sectionID && a.PeriodID == periodID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeachers) CreateAssignment(_ context.Context, a *models.TeacherAssignment) error {
	m.nextID++
	a.ID = fmt.Sprintf("assignment-%d", m.nextID)
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *mockTeachers) UpdateAssignment(_ context.Context, a *models.TeacherAssignment) error {
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *mockTeachers) DeleteAssignment(_ context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

type stubAssignmentLookup struct {
	subjects map[string]*models.Subject
	sections map[string]*models.Section
}

func (s stubAssignmentLookup) FindSubject(_ context.Context, id string) (*models.Subject, error) {
	if v, ok := s.subjects[id]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

func (s stubAssignmentLookup) FindSection(_ context.Context, id string) (*models.Section, error) {
	if v, ok := s.sections[id]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

const (
	testSubject = "7d1c0f0e-4b7a-4d59-9b1b-0a2f6b7c8d90"
	testGrade   = "1f0a9a7e-2c1b-4e55-8f3e-5a6b7c8d9e01"
)

type teacherFixture struct {
	svc      *TeacherService
	repo     *mockTeachers
	users    *fakeUsers
	uploader *fakeUploader
	notifier *fakeNotifier
}

func newTeacherFixture() *teacherFixture {
	f := &teacherFixture{
		repo:     newMockTeachers(),
		users:    newFakeUsers(),
		uploader: &fakeUploader{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewTeacherService(TeacherServiceDeps{
		Teachers: f.repo,
		Structure: stubAssignmentLookup{
			subjects: map[string]*models.Subject{testSubject: {ID: testSubject, Name: "Matemáticas"}},
			sections: map[string]*models.Section{testSection: {ID: testSection, GradeID: testGrade, Name: "A"}},
		},
		Periods:    stubPeriodFinder{testPeriod: {ID: testPeriod, Code: "2025"}},
		Users:      f.users,
		Sequences:  &fakeSequence{},
		Tx:         &fakeTx{},
		Storage:    f.uploader,
		Notifier:   f.notifier,
		BcryptCost: 4,
	})
	return f
}

func teacherReq(ci string) models.TeacherRequest {
	return models.TeacherRequest{FirstName: "Ana", PaternalSurname: "Rojas", MaternalSurname: "Vaca", CI: ci, Email: "Ana@Colegio.bo"}
}

func TestTeacherServiceCreateAssignsCodeAndAccount(t *testing.T) {
	f := newTeacherFixture()
	req := teacherReq("4455667")
	req.CreateAccount = true

	res, err := f.svc.Create(context.Background(), staffMeta(), req)
	require.NoError(t, err)
	assert.Equal(t, "DOC-0001", res.Code)
	assert.Equal(t, "ana@colegio.bo", res.Email)
	assert.Equal(t, "activo", res.Status)
	require.NotNil(t, res.Credentials)
	assert.Equal(t, "4455667", res.Credentials.Password)
	assert.Equal(t, []string{models.RoleTeacher}, f.users.roles[res.Credentials.UserID])
	assert.Len(t, f.notifier.messages, 1)

	second, err := f.svc.Create(context.Background(), staffMeta(), teacherReq("998877"))
	require.NoError(t, err)
	assert.Equal(t, "DOC-0002", second.Code)
	assert.Nil(t, second.Credentials)
}

func TestTeacherServiceRejectsDuplicateCI(t *testing.T) {
	f := newTeacherFixture()
	_, err := f.svc.Create(context.Background(), staffMeta(), teacherReq("4455667"))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), staffMeta(), teacherReq("4455667"))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestTeacherServiceUploadCV(t *testing.T) {
	f := newTeacherFixture()
	res, err := f.svc.Create(context.Background(), staffMeta(), teacherReq("4455667"))
	require.NoError(t, err)

	updated, err := f.svc.UploadCV(context.Background(), staffMeta(), res.ID, models.UploadedFile{FileName: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	require.NotNil(t, updated.CVURL)
	require.Len(t, f.uploader.uploads, 1)
	assert.Equal(t, "teachers/"+res.ID+"/cv", f.uploader.uploads[0].Folder)
}

func TestTeacherServiceAssignmentUsesSectionGrade(t *testing.T) {
	f := newTeacherFixture()
	teacher, err := f.svc.Create(context.Background(), staffMeta(), teacherReq("4455667"))
	require.NoError(t, err)

	req := models.TeacherAssignmentRequest{TeacherID: teacher.ID, SubjectID: testSubject, SectionID: testSection, PeriodID: testPeriod, WeeklyHours: 6}
	a, err := f.svc.CreateAssignment(context.Background(), staffMeta(), req)
	require.NoError(t, err)
	assert.Equal(t, testGrade, a.GradeID)

	_, err = f.svc.CreateAssignment(context.Background(), staffMeta(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	req.WeeklyHours = 4
	updated, err := f.svc.UpdateAssignment(context.Background(), staffMeta(), a.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.WeeklyHours)
}

func TestTeacherServiceAssignmentUnknownSection(t *testing.T) {
	f := newTeacherFixture()
	teacher, err := f.svc.Create(context.Background(), staffMeta(), teacherReq("4455667"))
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(context.Background(), staffMeta(), models.TeacherAssignmentRequest{
		TeacherID: teacher.ID, SubjectID: testSubject, SectionID: testSection2, PeriodID: testPeriod,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
