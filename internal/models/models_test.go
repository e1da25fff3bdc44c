package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardPath(t *testing.T) {
	path := []PreEnrollmentStatus{
		PreEnrollmentStarted,
		PreEnrollmentDataComplete,
		PreEnrollmentDocumentsPending,
		PreEnrollmentInReview,
		PreEnrollmentDocumentsApproved,
		PreEnrollmentInterviewScheduled,
		PreEnrollmentInterviewDone,
		PreEnrollmentApproved,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransitionRules(t *testing.T) {
	// review can bounce back for more documents
	assert.True(t, CanTransition(PreEnrollmentInReview, PreEnrollmentDocumentsPending))
	// no skipping
	assert.False(t, CanTransition(PreEnrollmentStarted, PreEnrollmentApproved))
	// conversion only through its own operation
	assert.False(t, CanTransition(PreEnrollmentApproved, PreEnrollmentConverted))
	// closing from any open state
	assert.True(t, CanTransition(PreEnrollmentInterviewScheduled, PreEnrollmentRejected))
	assert.True(t, CanTransition(PreEnrollmentStarted, PreEnrollmentCancelled))
	assert.True(t, CanTransition(PreEnrollmentApproved, PreEnrollmentExpired))
	// terminal states are final
	assert.False(t, CanTransition(PreEnrollmentRejected, PreEnrollmentStarted))
	assert.False(t, CanTransition(PreEnrollmentConverted, PreEnrollmentCancelled))
}

func TestPreEnrollmentStatusValid(t *testing.T) {
	assert.True(t, PreEnrollmentConverted.Valid())
	assert.True(t, PreEnrollmentInReview.Valid())
	assert.False(t, PreEnrollmentStatus("borrador").Valid())
}

func TestEnrollmentStatus(t *testing.T) {
	assert.True(t, EnrollmentFrozen.Valid())
	assert.False(t, EnrollmentStatus("ACTIVE").Valid())
	assert.True(t, EnrollmentWithdrawn.StampsWithdrawal())
	assert.True(t, EnrollmentTransferred.StampsWithdrawal())
	assert.False(t, EnrollmentSuspended.StampsWithdrawal())
}

func TestPrincipalCan(t *testing.T) {
	p := &Principal{Roles: []string{RoleSecretary}, Permissions: []string{"matriculas.crear"}}
	assert.True(t, p.Can("matriculas.crear"))
	assert.True(t, p.Can("usuarios.leer", "matriculas.crear"))
	assert.False(t, p.Can("usuarios.leer"))

	admin := &Principal{Roles: []string{RoleSuperAdmin}}
	assert.True(t, admin.Can("anything.at_all"))

	var nobody *Principal
	assert.False(t, nobody.Can("matriculas.leer"))
	assert.False(t, nobody.HasRole(RoleStudent))
}

func TestPeriodOverlaps(t *testing.T) {
	d := func(s string) time.Time { v, _ := ParseDate(s); return v }
	p := AcademicPeriod{StartDate: d("2025-02-01"), EndDate: d("2025-11-30")}

	assert.True(t, p.Overlaps(d("2025-11-30"), d("2026-01-10")))
	assert.True(t, p.Overlaps(d("2025-03-01"), d("2025-04-01")))
	assert.False(t, p.Overlaps(d("2025-12-01"), d("2026-11-30")))
	assert.False(t, p.Overlaps(d("2024-02-01"), d("2025-01-31")))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 500, 201)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 3, p.TotalPages)

	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
}

func TestVacationEnrollmentOpen(t *testing.T) {
	d := func(s string) time.Time { v, _ := ParseDate(s); return v }
	start, end := d("2025-06-01"), d("2025-06-15")
	p := VacationPeriod{IsActive: true, EnrollmentStart: &start, EnrollmentEnd: &end}

	assert.False(t, p.EnrollmentOpen(d("2025-05-31")))
	assert.True(t, p.EnrollmentOpen(d("2025-06-15").Add(20*time.Hour)))
	assert.False(t, p.EnrollmentOpen(d("2025-06-16")))

	p.IsActive = false
	assert.False(t, p.EnrollmentOpen(d("2025-06-10")))
}

func TestVacationCourseAvailableSeats(t *testing.T) {
	assert.Equal(t, 0, VacationCourse{TotalSeats: 1, OccupiedSeats: 1}.AvailableSeats())
	assert.Equal(t, 3, VacationCourse{TotalSeats: 5, OccupiedSeats: 2}.AvailableSeats())
}
