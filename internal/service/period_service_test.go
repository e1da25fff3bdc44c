package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type mockPeriods struct {
	periods        map[string]*models.AcademicPeriod
	hasEnrollments bool
	created        []*models.AcademicPeriod
	activated      string
}

func newMockPeriods(existing ...models.AcademicPeriod) *mockPeriods {
	m := &mockPeriods{periods: map[string]*models.AcademicPeriod{}}
	for i := range existing {
		p := existing[i]
		m.periods[p.ID] = &p
	}
	return m
}

func (m *mockPeriods) FindByID(_ context.Context, id string) (*models.AcademicPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPeriods) FindActive(context.Context) (*models.AcademicPeriod, error) {
	for _, p := range m.periods {
		if p.IsActive {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriods) List(context.Context, models.PeriodFilter) ([]models.AcademicPeriod, int, error) {
	out := make([]models.AcademicPeriod, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPeriods) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]models.AcademicPeriod, error) {
	var out []models.AcademicPeriod
	for _, p := range m.periods {
		if p.ID != excludeID && p.Overlaps(start, end) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPeriods) NameOrCodeTaken(_ context.Context, name, code, excludeID string) (bool, bool, error) {
	var nameTaken, codeTaken bool
	for _, p := range m.periods {
		if p.ID == excludeID {
			continue
		}
		nameTaken = nameTaken || p.Name == name
		codeTaken = codeTaken || p.Code == code
	}
	return nameTaken, codeTaken, nil
}

func (m *mockPeriods) Create(_ context.Context, p *models.AcademicPeriod) error {
	p.ID = "period-new"
	m.periods[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockPeriods) Update(_ context.Context, p *models.AcademicPeriod) error {
	m.periods[p.ID] = p
	return nil
}

func (m *mockPeriods) Activate(_ context.Context, id string) error {
	m.activated = id
	return nil
}

func (m *mockPeriods) SoftDelete(_ context.Context, id string) error {
	delete(m.periods, id)
	return nil
}

func (m *mockPeriods) HasEnrollments(context.Context, string) (bool, error) {
	return m.hasEnrollments, nil
}

func period2025() models.AcademicPeriod {
	return models.AcademicPeriod{
		ID:        "p-2025",
		Name:      "Gestión 2025",
		Code:      "2025",
		StartDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestPeriodServiceCreateRejectsOverlap(t *testing.T) {
	repo := newMockPeriods(period2025())
	svc := NewPeriodService(repo, &fakeTx{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), staffMeta(), models.PeriodRequest{
		Name: "Gestión 2025 B", Code: "2025B", StartDate: "2025-06-01", EndDate: "2026-01-31",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, repo.created)
}

func TestPeriodServiceCreate(t *testing.T) {
	repo := newMockPeriods(period2025())
	auditLog := &fakeAudit{}
	svc := NewPeriodService(repo, &fakeTx{}, auditLog, nil, nil)

	period, err := svc.Create(context.Background(), staffMeta(), models.PeriodRequest{
		Name: " Gestión 2026 ", Code: "2026", StartDate: "2026-02-01", EndDate: "2026-12-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "Gestión 2026", period.Name)
	assert.Equal(t, models.ModulePeriods, auditLog.last().Module)
}

func TestPeriodServiceCreateValidatesDates(t *testing.T) {
	svc := NewPeriodService(newMockPeriods(), &fakeTx{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), staffMeta(), models.PeriodRequest{
		Name: "Gestión", Code: "X", StartDate: "2026-03-01", EndDate: "2026-02-01",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestPeriodServiceCreateDuplicateCode(t *testing.T) {
	svc := NewPeriodService(newMockPeriods(period2025()), &fakeTx{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), staffMeta(), models.PeriodRequest{
		Name: "Otra", Code: "2025", StartDate: "2030-02-01", EndDate: "2030-12-01",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestPeriodServiceUpdateExcludesItself(t *testing.T) {
	repo := newMockPeriods(period2025())
	svc := NewPeriodService(repo, &fakeTx{}, nil, nil, nil)

	period, err := svc.Update(context.Background(), staffMeta(), "p-2025", models.PeriodRequest{
		Name: "Gestión 2025", Code: "2025", StartDate: "2025-02-03", EndDate: "2025-12-20",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, period.StartDate.Day())
}

func TestPeriodServiceDeleteBlockedByEnrollments(t *testing.T) {
	repo := newMockPeriods(period2025())
	repo.hasEnrollments = true
	svc := NewPeriodService(repo, &fakeTx{}, nil, nil, nil)

	err := svc.Delete(context.Background(), staffMeta(), "p-2025")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestPeriodServiceCloseThenActivate(t *testing.T) {
	repo := newMockPeriods(period2025())
	svc := NewPeriodService(repo, &fakeTx{}, nil, nil, nil)

	closed, err := svc.Close(context.Background(), staffMeta(), "p-2025")
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	_, err = svc.Activate(context.Background(), staffMeta(), "p-2025")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, repo.activated)
}
