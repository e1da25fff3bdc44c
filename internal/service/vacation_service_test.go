package service

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/repository"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type memVacations struct {
	mu          sync.Mutex
	periods     map[string]*models.VacationPeriod
	courses     map[string]*models.VacationCourse
	enrollments map[string]*models.VacationEnrollment
	// staleReads returns cancelled enrollments from FindEnrollment, like a
	// read that raced a concurrent delete.
	staleReads bool
}

func newMemVacations() *memVacations {
	return &memVacations{
		periods:     map[string]*models.VacationPeriod{},
		courses:     map[string]*models.VacationCourse{},
		enrollments: map[string]*models.VacationEnrollment{},
	}
}

func (m *memVacations) ListPeriods(context.Context) ([]models.VacationPeriod, error) { return nil, nil }

func (m *memVacations) FindPeriod(_ context.Context, id string) (*models.VacationPeriod, error) {
	if p, ok := m.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memVacations) PeriodCodeExists(_ context.Context, code, excludeID string) (bool, error) {
	for _, p := range m.periods {
		if p.ID != excludeID && p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memVacations) CreatePeriod(_ context.Context, p *models.VacationPeriod) error {
	p.ID = uuid.NewString()
	cp := *p
	m.periods[p.ID] = &cp
	return nil
}

func (m *memVacations) UpdatePeriod(_ context.Context, p *models.VacationPeriod) error {
	cp := *p
	m.periods[p.ID] = &cp
	return nil
}

func (m *memVacations) DeletePeriod(_ context.Context, id string) error {
	delete(m.periods, id)
	return nil
}

func (m *memVacations) PeriodHasCourses(_ context.Context, id string) (bool, error) {
	for _, c := range m.courses {
		if c.VacationPeriodID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memVacations) ListCourses(context.Context, models.VacationCourseFilter) ([]models.VacationCourse, error) {
	return nil, nil
}

func (m *memVacations) FindCourse(_ context.Context, id string) (*models.VacationCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memVacations) CreateCourse(_ context.Context, c *models.VacationCourse) error {
	c.ID = uuid.NewString()
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memVacations) UpdateCourse(_ context.Context, c *models.VacationCourse) error {
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memVacations) DeleteCourse(_ context.Context, id string) error {
	delete(m.courses, id)
	return nil
}

func (m *memVacations) ReserveSeat(_ context.Context, courseID string) (*models.VacationCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok || !c.IsActive || c.OccupiedSeats >= c.TotalSeats {
		return nil, repository.ErrNoSeat
	}
	c.OccupiedSeats++
	cp := *c
	return &cp, nil
}

func (m *memVacations) ReleaseSeat(_ context.Context, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.courses[courseID]; ok && c.OccupiedSeats > 0 {
		c.OccupiedSeats--
	}
	return nil
}

func (m *memVacations) CreateEnrollment(_ context.Context, e *models.VacationEnrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m *memVacations) detail(e *models.VacationEnrollment) models.VacationEnrollmentDetail {
	d := models.VacationEnrollmentDetail{VacationEnrollment: *e}
	if c, ok := m.courses[e.VacationCourseID]; ok {
		d.CourseName = c.Name
		d.CourseSchedule = c.Schedule
	}
	return d
}

func (m *memVacations) FindEnrollment(_ context.Context, id string) (*models.VacationEnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok || (e.Status == models.VacationCancelled && !m.staleReads) {
		return nil, sql.ErrNoRows
	}
	d := m.detail(e)
	return &d, nil
}

func (m *memVacations) FindEnrollments(_ context.Context, ids []string) ([]models.VacationEnrollmentDetail, error) {
	var out []models.VacationEnrollmentDetail
	for _, id := range ids {
		if e, ok := m.enrollments[id]; ok && e.Status != models.VacationCancelled {
			out = append(out, m.detail(e))
		}
	}
	return out, nil
}

func (m *memVacations) ListEnrollments(context.Context, models.VacationEnrollmentFilter) ([]models.VacationEnrollmentDetail, int, error) {
	return nil, len(m.enrollments), nil
}

func (m *memVacations) VerifyPayment(_ context.Context, e *models.VacationEnrollment) error {
	cp := *e
	m.enrollments[e.ID] = &cp
	return nil
}

func (m *memVacations) SoftDeleteEnrollment(_ context.Context, id string) error {
	e, ok := m.enrollments[id]
	if !ok || e.Status == models.VacationCancelled {
		return sql.ErrNoRows
	}
	e.Status = models.VacationCancelled
	return nil
}

// lockingTx serialises callbacks like a database would serialise the
// conditional seat update.
type lockingTx struct {
	mu sync.Mutex
}

func (l *lockingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type vacationFixture struct {
	svc      *VacationService
	repo     *memVacations
	notifier *fakeNotifier
	course   *models.VacationCourse
}

func newVacationFixture(seats int) *vacationFixture {
	repo := newMemVacations()
	period := &models.VacationPeriod{
		ID: uuid.NewString(), Code: "INV2025", Name: "Invierno 2025", IsActive: true,
		StartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	repo.periods[period.ID] = period
	course := &models.VacationCourse{
		ID: uuid.NewString(), VacationPeriodID: period.ID, Name: "Robótica", Schedule: "Lun-Vie 09:00",
		MinAge: 8, MaxAge: 14, Cost: 150.5, TotalSeats: seats, IsActive: true,
	}
	repo.courses[course.ID] = course

	f := &vacationFixture{repo: repo, notifier: &fakeNotifier{}, course: course}
	f.svc = NewVacationService(VacationServiceDeps{
		Vacations: repo,
		Sequences: &fakeSequence{},
		Tx:        &lockingTx{},
		Notifier:  f.notifier,
	})
	f.svc.now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *vacationFixture) request(participant string) models.VacationEnrollmentRequest {
	birth := "2014-03-10"
	return models.VacationEnrollmentRequest{
		VacationCourseID:     f.course.ID,
		ParticipantName:      participant,
		ParticipantBirthDate: &birth,
		PayerName:            "Carla Méndez",
		PayerCI:              "6543210",
		PayerEmail:           "carla@example.com",
		PaymentMethod:        "qr",
	}
}

func TestVacationServiceEnrollGeneratesCodeAndMail(t *testing.T) {
	f := newVacationFixture(5)

	got, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)
	assert.Equal(t, "VAC-INV2025-0001", got.Code)
	assert.Equal(t, 150.5, got.Amount)
	assert.Equal(t, "Robótica", got.CourseName)
	assert.Equal(t, 1, f.repo.courses[f.course.ID].OccupiedSeats)

	require.Len(t, f.notifier.messages, 1)
	data := f.notifier.messages[0].Data.(map[string]string)
	assert.Equal(t, "150.50", data["Amount"])
	assert.Equal(t, "VAC-INV2025-0001", data["Code"])
}

func TestVacationServiceOneSeatRejectsSecond(t *testing.T) {
	f := newVacationFixture(1)

	_, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)

	_, err = f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, f.repo.courses[f.course.ID].OccupiedSeats)
	assert.Len(t, f.repo.enrollments, 1)
}

func TestVacationServiceConcurrentEnrollTakesSingleSeat(t *testing.T) {
	f := newVacationFixture(1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Enroll(context.Background(), staffMeta(), f.request("Participante"))
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, f.repo.courses[f.course.ID].OccupiedSeats)
}

func TestVacationServiceRejectsAgeOutOfRange(t *testing.T) {
	f := newVacationFixture(5)
	req := f.request("Bebé Méndez")
	birth := "2022-01-01"
	req.ParticipantBirthDate = &birth

	_, err := f.svc.Enroll(context.Background(), staffMeta(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Zero(t, f.repo.courses[f.course.ID].OccupiedSeats)
}

func TestVacationServiceClosedEnrollmentWindow(t *testing.T) {
	f := newVacationFixture(5)
	closed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range f.repo.periods {
		p.EnrollmentEnd = &closed
	}

	_, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestVacationServiceDeleteReleasesSeat(t *testing.T) {
	f := newVacationFixture(1)
	got, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEnrollment(context.Background(), staffMeta(), got.ID))
	assert.Zero(t, f.repo.courses[f.course.ID].OccupiedSeats)

	_, err = f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.NoError(t, err)
}

func TestVacationServiceDeleteTwiceReleasesSeatOnce(t *testing.T) {
	f := newVacationFixture(5)
	a, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)
	_, err = f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.NoError(t, err)
	require.Equal(t, 2, f.repo.courses[f.course.ID].OccupiedSeats)

	require.NoError(t, f.svc.DeleteEnrollment(context.Background(), staffMeta(), a.ID))
	assert.Equal(t, 1, f.repo.courses[f.course.ID].OccupiedSeats)

	f.repo.staleReads = true
	err = f.svc.DeleteEnrollment(context.Background(), staffMeta(), a.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.Equal(t, 1, f.repo.courses[f.course.ID].OccupiedSeats)
}

func TestVacationServiceReceiptRequiresEveryEnrollment(t *testing.T) {
	f := newVacationFixture(5)
	a, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)
	b, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteEnrollment(context.Background(), staffMeta(), b.ID))

	_, err = f.svc.Receipt(context.Background(), []string{a.ID, b.ID})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, err = f.svc.Receipt(context.Background(), []string{a.ID, uuid.NewString()})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestVacationServiceVerifyPaymentAndReceipt(t *testing.T) {
	f := newVacationFixture(5)
	a, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)
	b, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.NoError(t, err)

	verified, err := f.svc.VerifyPayment(context.Background(), staffMeta(), a.ID, models.VerifyPaymentRequest{PaymentReference: "QR-991"})
	require.NoError(t, err)
	assert.True(t, verified.PaymentVerified)
	assert.Equal(t, "QR-991", verified.PaymentReference)
	require.NotNil(t, verified.PaymentVerifiedBy)
	assert.Equal(t, "actor-1", *verified.PaymentVerifiedBy)

	_, err = f.svc.VerifyPayment(context.Background(), staffMeta(), a.ID, models.VerifyPaymentRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	file, err := f.svc.Receipt(context.Background(), []string{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "%PDF", string(file.Data[:4]))
}

func TestVacationServiceCourseSeatsBelowOccupied(t *testing.T) {
	f := newVacationFixture(3)
	_, err := f.svc.Enroll(context.Background(), staffMeta(), f.request("Luis Méndez"))
	require.NoError(t, err)
	_, err = f.svc.Enroll(context.Background(), staffMeta(), f.request("Ana Méndez"))
	require.NoError(t, err)

	_, err = f.svc.UpdateCourse(context.Background(), staffMeta(), f.course.ID, models.VacationCourseRequest{
		VacationPeriodID: f.course.VacationPeriodID, Name: "Robótica", TotalSeats: 1,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}
