package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

const (
	testStudentA = "5f0e6a1c-2b3d-4e5f-8a9b-0c1d2e3f4a5b"
	testStudentB = "6a1f7b2d-3c4e-4f60-9b0c-1d2e3f4a5b6c"
	testSection  = "7b2a8c3e-4d5f-4071-8c1d-2e3f4a5b6c7d"
	testSection2 = "8c3b9d4f-5e60-4182-9d2e-3f4a5b6c7d8e"
	testPeriod   = "9d4cae50-6f71-4293-8e3f-4a5b6c7d8e9f"
)

type memEnrollments struct {
	mu        sync.Mutex
	items     map[string]*models.Enrollment
	documents map[string][]models.EnrollmentDocument
	nextID    int
	failDocs  bool
	createErr error
}

func newMemEnrollments() *memEnrollments {
	return &memEnrollments{items: map[string]*models.Enrollment{}, documents: map[string][]models.EnrollmentDocument{}}
}

func (m *memEnrollments) List(_ context.Context, f models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.items {
		if f.StudentID != "" && e.StudentID != f.StudentID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *memEnrollments) ListForExport(context.Context, models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.items {
		out = append(out, models.EnrollmentDetail{Enrollment: *e, StudentName: "Ana Quispe", PeriodCode: "2025"})
	}
	return out, nil
}

func (m *memEnrollments) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *memEnrollments) FindDetail(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: *e, StudentName: "Ana Quispe", PeriodName: "Gestión 2025"}, nil
}

func (m *memEnrollments) ExistsForStudentPeriod(_ context.Context, studentID, periodID string) (bool, error) {
	for _, e := range m.items {
		if e.StudentID == studentID && e.PeriodID == periodID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEnrollments) Create(_ context.Context, e *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	e.ID = fmt.Sprintf("enr-%d", m.nextID)
	cp := *e
	m.items[e.ID] = &cp
	return nil
}

func (m *memEnrollments) Update(_ context.Context, e *models.Enrollment) error {
	cp := *e
	m.items[e.ID] = &cp
	return nil
}

func (m *memEnrollments) SoftDelete(_ context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func (m *memEnrollments) CountByStatus(context.Context, string) ([]models.StatusCount, error) {
	counts := map[string]int{}
	for _, e := range m.items {
		counts[string(e.Status)]++
	}
	var out []models.StatusCount
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (m *memEnrollments) CountByGrade(context.Context, string) ([]models.GradeCount, error) {
	return nil, nil
}

func (m *memEnrollments) CountFlags(context.Context, string) (int, int, error) { return 0, 0, nil }

func (m *memEnrollments) CreateDocument(_ context.Context, doc *models.EnrollmentDocument) error {
	if m.failDocs {
		return fmt.Errorf("insert document failed")
	}
	doc.ID = fmt.Sprintf("doc-%d", len(m.documents[doc.EnrollmentID])+1)
	m.documents[doc.EnrollmentID] = append(m.documents[doc.EnrollmentID], *doc)
	return nil
}

func (m *memEnrollments) Documents(_ context.Context, id string) ([]models.EnrollmentDocument, error) {
	return m.documents[id], nil
}

func (m *memEnrollments) FindDocument(_ context.Context, enrollmentID, documentID string) (*models.EnrollmentDocument, error) {
	for _, d := range m.documents[enrollmentID] {
		if d.ID == documentID {
			cp := d
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memEnrollments) UpdateDocumentVerification(_ context.Context, doc *models.EnrollmentDocument) error {
	docs := m.documents[doc.EnrollmentID]
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = *doc
		}
	}
	return nil
}

func (m *memEnrollments) DeleteDocument(context.Context, string) error { return nil }

// memSections counts active enrollments straight from memEnrollments.
type memSections struct {
	enrollments *memEnrollments
	sections    map[string]*models.Section
	locks       int
}

func (m *memSections) LockSection(_ context.Context, id string) (*models.Section, error) {
	m.locks++
	s, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *memSections) CountActiveEnrollments(_ context.Context, sectionID, periodID string) (int, error) {
	n := 0
	for _, e := range m.enrollments.items {
		if e.SectionID == sectionID && e.PeriodID == periodID && e.Status == models.EnrollmentActive {
			n++
		}
	}
	return n, nil
}

type stubPeriodFinder map[string]*models.AcademicPeriod

func (s stubPeriodFinder) FindByID(_ context.Context, id string) (*models.AcademicPeriod, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type stubStudentFinder map[string]*models.Student

func (s stubStudentFinder) FindByID(_ context.Context, id string) (*models.Student, error) {
	if st, ok := s[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (s stubStudentFinder) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	for _, st := range s {
		if models.StringValue(st.UserID) == userID {
			return st, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memCache struct {
	values  map[string]interface{}
	hits    int
	deletes []string
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	*dest.(*models.EnrollmentStats) = *v.(*models.EnrollmentStats)
	return nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.deletes = append(c.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			delete(c.values, k)
		}
	}
	return nil
}

type enrollmentFixture struct {
	svc         *EnrollmentService
	enrollments *memEnrollments
	sections    *memSections
	periods     stubPeriodFinder
	uploader    *fakeUploader
	tx          *fakeTx
	cache       *memCache
	audit       *fakeAudit
}

func newEnrollmentFixture(capacity int) *enrollmentFixture {
	enrollments := newMemEnrollments()
	f := &enrollmentFixture{
		enrollments: enrollments,
		sections: &memSections{enrollments: enrollments, sections: map[string]*models.Section{
			testSection:  {ID: testSection, Name: "A", Capacity: capacity},
			testSection2: {ID: testSection2, Name: "B", Capacity: capacity},
		}},
		periods:  stubPeriodFinder{testPeriod: {ID: testPeriod, Code: "2025", Name: "Gestión 2025"}},
		uploader: &fakeUploader{},
		tx:       &fakeTx{},
		cache:    &memCache{values: map[string]interface{}{}},
		audit:    &fakeAudit{},
	}
	userID := "user-ana"
	f.svc = NewEnrollmentService(EnrollmentServiceDeps{
		Enrollments: enrollments,
		Sections:    f.sections,
		Periods:     f.periods,
		Students: stubStudentFinder{
			testStudentA: {ID: testStudentA, FirstName: "Ana", UserID: &userID},
			testStudentB: {ID: testStudentB, FirstName: "Luis"},
		},
		Sequences: &fakeSequence{},
		Tx:        f.tx,
		Storage:   f.uploader,
		Cache:     f.cache,
		Audit:     f.audit,
	})
	f.svc.now = func() time.Time { return time.Date(2025, 2, 10, 14, 30, 0, 0, time.UTC) }
	return f
}

func enrollReq(studentID string) models.CreateEnrollmentRequest {
	return models.CreateEnrollmentRequest{StudentID: studentID, SectionID: testSection, PeriodID: testPeriod}
}

func pdfFile(field string) models.UploadedFile {
	return models.UploadedFile{Field: field, FileName: field + ".pdf", ContentType: "application/pdf", Size: 4, Data: []byte("%PDF")}
}

func TestEnrollmentServiceNumbersIncrease(t *testing.T) {
	f := newEnrollmentFixture(30)

	first, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentB), nil)
	require.NoError(t, err)

	assert.Equal(t, "MAT-2025-0001", first.EnrollmentNumber)
	assert.Equal(t, "MAT-2025-0002", second.EnrollmentNumber)
	assert.Equal(t, models.EnrollmentActive, first.Status)
	assert.Equal(t, "2025-02-10", first.EnrollmentDate.Format(models.DateLayout))
	assert.Equal(t, "actor-1", models.StringValue(first.CreatedBy))
	assert.Equal(t, models.ModuleEnrollments, f.audit.last().Module)
}

func TestEnrollmentServiceDuplicateStudentPeriod(t *testing.T) {
	f := newEnrollmentFixture(30)
	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "El estudiante ya tiene una matrícula en este periodo", appErr.Message)
	assert.Len(t, f.enrollments.items, 1)
}

func TestEnrollmentServiceUniqueIndexConflict(t *testing.T) {
	f := newEnrollmentFixture(30)
	f.enrollments.createErr = fmt.Errorf("insert enrollment: %w", &pq.Error{Code: "23505", Constraint: "ux_enrollments_student_period"})

	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, duplicateEnrollmentMsg, appErr.Message)
}

func TestEnrollmentServiceFullSectionRejected(t *testing.T) {
	f := newEnrollmentFixture(1)
	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentB), nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Len(t, f.enrollments.items, 1)
	assert.Equal(t, 2, f.sections.locks)
}

func TestEnrollmentServiceClosedPeriod(t *testing.T) {
	f := newEnrollmentFixture(30)
	f.periods[testPeriod].IsClosed = true

	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceUploadFailureCleansUp(t *testing.T) {
	f := newEnrollmentFixture(30)
	f.uploader.failAfter = 1

	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA),
		[]models.UploadedFile{pdfFile("certificado_nacimiento"), pdfFile("libreta_notas")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUploadFailed.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, f.tx.rolledBack)
	require.Len(t, f.uploader.uploads, 1)
	assert.Len(t, f.uploader.deleted, 1)
}

func TestEnrollmentServiceDocumentRowFailureCleansUp(t *testing.T) {
	f := newEnrollmentFixture(30)
	f.enrollments.failDocs = true

	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), []models.UploadedFile{pdfFile("ci_estudiante")})
	require.Error(t, err)
	assert.Len(t, f.uploader.deleted, 1)
}

func TestEnrollmentServiceCreateWithDocuments(t *testing.T) {
	f := newEnrollmentFixture(30)

	detail, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA),
		[]models.UploadedFile{pdfFile("certificado_nacimiento"), pdfFile("anexo")})
	require.NoError(t, err)
	require.Len(t, detail.Documents, 2)
	assert.Equal(t, "certificado_nacimiento", detail.Documents[0].DocumentType)
	assert.Equal(t, "otro", detail.Documents[1].DocumentType)
	assert.Empty(t, f.uploader.deleted)
}

func TestEnrollmentServiceAutoEnroll(t *testing.T) {
	f := newEnrollmentFixture(30)
	meta := models.RequestMeta{Principal: &models.Principal{UserID: "user-ana", Roles: []string{models.RoleStudent}}}
	req := models.AutoEnrollmentRequest{SectionID: testSection, PeriodID: testPeriod}

	_, err := f.svc.AutoEnroll(context.Background(), meta, req, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)

	detail, err := f.svc.AutoEnroll(context.Background(), meta, req, []models.UploadedFile{pdfFile("ci_estudiante")})
	require.NoError(t, err)
	assert.Equal(t, testStudentA, detail.StudentID)

	other := models.RequestMeta{Principal: &models.Principal{UserID: "nobody"}}
	_, err = f.svc.AutoEnroll(context.Background(), other, req, []models.UploadedFile{pdfFile("ci_estudiante")})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceWithdrawalStamps(t *testing.T) {
	f := newEnrollmentFixture(1)
	created, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	detail, err := f.svc.ChangeStatus(context.Background(), staffMeta(), created.ID, models.ChangeEnrollmentStatusRequest{
		Status: models.EnrollmentWithdrawn, Reason: "cambio de ciudad",
	})
	require.NoError(t, err)
	require.NotNil(t, detail.WithdrawalDate)
	assert.Equal(t, "2025-02-10", detail.WithdrawalDate.Format(models.DateLayout))
	assert.Equal(t, "cambio de ciudad", models.StringValue(detail.WithdrawalReason))

	_, err = f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentB), nil)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), staffMeta(), created.ID, models.ChangeEnrollmentStatusRequest{Status: models.EnrollmentActive})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceInvalidStatus(t *testing.T) {
	f := newEnrollmentFixture(30)
	created, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), staffMeta(), created.ID, models.ChangeEnrollmentStatusRequest{Status: "borrado"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceTransferChecksDestination(t *testing.T) {
	f := newEnrollmentFixture(1)
	first, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)
	req := enrollReq(testStudentB)
	req.SectionID = testSection2
	_, err = f.svc.Create(context.Background(), staffMeta(), req, nil)
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), staffMeta(), first.ID, models.TransferSectionRequest{SectionID: testSection2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)

	f.sections.sections[testSection2].Capacity = 2
	moved, err := f.svc.Transfer(context.Background(), staffMeta(), first.ID, models.TransferSectionRequest{SectionID: testSection2, Reason: "horario"})
	require.NoError(t, err)
	assert.Equal(t, testSection2, moved.SectionID)
	assert.Contains(t, moved.Notes, "horario")
}

func TestEnrollmentServiceStatsCached(t *testing.T) {
	f := newEnrollmentFixture(30)
	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	stats, err := f.svc.Stats(context.Background(), testPeriod)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["activo"])

	_, err = f.svc.Stats(context.Background(), testPeriod)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentB), nil)
	require.NoError(t, err)
	assert.Contains(t, f.cache.deletes, "stats:enrollments:*")

	stats, err = f.svc.Stats(context.Background(), testPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

func TestEnrollmentServiceExportCSV(t *testing.T) {
	f := newEnrollmentFixture(30)
	_, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), nil)
	require.NoError(t, err)

	file, err := f.svc.Export(context.Background(), models.EnrollmentFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "matriculas-20250210.csv", file.FileName)
	assert.Contains(t, string(file.Data), "MAT-2025-0001")
	assert.Contains(t, string(file.Data), "Ana Quispe")

	_, err = f.svc.Export(context.Background(), models.EnrollmentFilter{}, "docx")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceVerifyDocument(t *testing.T) {
	f := newEnrollmentFixture(30)
	created, err := f.svc.Create(context.Background(), staffMeta(), enrollReq(testStudentA), []models.UploadedFile{pdfFile("ci_estudiante")})
	require.NoError(t, err)

	doc, err := f.svc.VerifyDocument(context.Background(), staffMeta(), created.ID, created.Documents[0].ID, models.VerifyDocumentRequest{Verified: true})
	require.NoError(t, err)
	assert.True(t, doc.IsVerified)
	assert.Equal(t, "actor-1", models.StringValue(doc.VerifiedBy))
	require.NotNil(t, doc.VerifiedAt)
}
