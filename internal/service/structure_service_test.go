package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

// mockStructure overrides the section methods and panics on anything else.
type mockStructure struct {
	structureRepository
	sections  map[string]*models.Section
	headcount int
	updated   *models.Section
	deleted   string
}

func (m *mockStructure) FindSection(_ context.Context, id string) (*models.Section, error) {
	s, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockStructure) MaxActiveEnrollments(context.Context, string) (int, error) {
	return m.headcount, nil
}

func (m *mockStructure) UpdateSection(_ context.Context, s *models.Section) error {
	m.updated = s
	return nil
}

func (m *mockStructure) DeleteSection(_ context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *mockStructure) SubjectCodeExists(_ context.Context, code, _ string) (bool, error) {
	return code == "MAT", nil
}

func newMockStructure(headcount int) *mockStructure {
	return &mockStructure{
		sections: map[string]*models.Section{
			"sec-a": {ID: "sec-a", GradeID: "g1", ShiftID: "s1", Name: "A", Capacity: 30},
		},
		headcount: headcount,
	}
}

func sectionRequest(capacity int) models.SectionRequest {
	return models.SectionRequest{
		GradeID:  "0d4f1c8e-5a37-4b1e-9c2d-7e6f5a4b3c21",
		ShiftID:  "1e5a2d9f-6b48-4c2f-8d3e-8f7a6b5c4d32",
		Name:     "a",
		Capacity: capacity,
	}
}

func TestStructureServiceSectionCapacityBelowHeadcount(t *testing.T) {
	repo := newMockStructure(25)
	repo.sections["sec-a"].GradeID = sectionRequest(0).GradeID
	repo.sections["sec-a"].ShiftID = sectionRequest(0).ShiftID
	svc := NewStructureService(repo, nil, nil, nil)

	_, err := svc.UpdateSection(context.Background(), staffMeta(), "sec-a", sectionRequest(20))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Nil(t, repo.updated)

	section, err := svc.UpdateSection(context.Background(), staffMeta(), "sec-a", sectionRequest(25))
	require.NoError(t, err)
	assert.Equal(t, 25, section.Capacity)
	assert.Equal(t, "A", section.Name)
}

func TestStructureServiceDeleteOccupiedSection(t *testing.T) {
	repo := newMockStructure(1)
	svc := NewStructureService(repo, nil, nil, nil)

	err := svc.DeleteSection(context.Background(), staffMeta(), "sec-a")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)

	repo.headcount = 0
	require.NoError(t, svc.DeleteSection(context.Background(), staffMeta(), "sec-a"))
	assert.Equal(t, "sec-a", repo.deleted)
}

func TestStructureServiceSectionNotFound(t *testing.T) {
	svc := NewStructureService(newMockStructure(0), nil, nil, nil)

	_, err := svc.GetSection(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestStructureServiceSubjectCodeTaken(t *testing.T) {
	svc := NewStructureService(newMockStructure(0), nil, nil, nil)

	_, err := svc.CreateSubject(context.Background(), staffMeta(), models.SubjectRequest{Code: "mat", Name: "Matemáticas"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}
