package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentActive      EnrollmentStatus = "activo"
	EnrollmentWithdrawn   EnrollmentStatus = "retirado"
	EnrollmentTransferred EnrollmentStatus = "trasladado"
	EnrollmentGraduated   EnrollmentStatus = "graduado"
	EnrollmentSuspended   EnrollmentStatus = "suspendido"
	EnrollmentFrozen      EnrollmentStatus = "congelado"
)

// EnrollmentStatuses lists every accepted status.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentActive, EnrollmentWithdrawn, EnrollmentTransferred,
	EnrollmentGraduated, EnrollmentSuspended, EnrollmentFrozen,
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	for _, v := range EnrollmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// StampsWithdrawal reports whether moving to s records a withdrawal.
func (s EnrollmentStatus) StampsWithdrawal() bool {
	return s == EnrollmentWithdrawn || s == EnrollmentTransferred
}

// Document types accepted on enrollments and pre-enrollments.
var DocumentTypes = []string{
	"certificado_nacimiento", "ci_estudiante", "ci_tutor", "libreta_notas",
	"certificado_medico", "foto", "libreta_vacunas", "comprobante_pago", "otro",
}

// ValidDocumentType reports whether t is accepted.
func ValidDocumentType(t string) bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Enrollment is a student's registration in a section for a period.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	EnrollmentNumber string           `db:"enrollment_number" json:"enrollment_number"`
	StudentID        string           `db:"student_id" json:"student_id"`
	SectionID        string           `db:"section_id" json:"section_id"`
	PeriodID         string           `db:"period_id" json:"period_id"`
	EnrollmentDate   time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	IsScholarship    bool             `db:"is_scholarship" json:"is_scholarship"`
	ScholarshipPct   float64          `db:"scholarship_pct" json:"scholarship_pct"`
	IsRepeating      bool             `db:"is_repeating" json:"is_repeating"`
	WithdrawalDate   *time.Time       `db:"withdrawal_date" json:"withdrawal_date,omitempty"`
	WithdrawalReason *string          `db:"withdrawal_reason" json:"withdrawal_reason,omitempty"`
	Notes            string           `db:"notes" json:"notes"`
	CreatedBy        *string          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time       `db:"deleted_at" json:"-"`
}

// EnrollmentDetail enriches Enrollment with student and placement info.
type EnrollmentDetail struct {
	Enrollment
	StudentCode string               `db:"student_code" json:"student_code"`
	StudentName string               `db:"student_name" json:"student_name"`
	StudentCI   *string              `db:"student_ci" json:"student_ci,omitempty"`
	SectionName string               `db:"section_name" json:"section_name"`
	GradeID     string               `db:"grade_id" json:"grade_id"`
	GradeName   string               `db:"grade_name" json:"grade_name"`
	LevelName   string               `db:"level_name" json:"level_name"`
	ShiftName   string               `db:"shift_name" json:"shift_name"`
	PeriodCode  string               `db:"period_code" json:"period_code"`
	PeriodName  string               `db:"period_name" json:"period_name"`
	Documents   []EnrollmentDocument `db:"-" json:"documents,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	PeriodID  string
	SectionID string
	GradeID   string
	StudentID string
	Status    EnrollmentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateEnrollmentRequest is the staff enrollment payload.
type CreateEnrollmentRequest struct {
	StudentID      string  `json:"student_id" validate:"required,uuid"`
	SectionID      string  `json:"section_id" validate:"required,uuid"`
	PeriodID       string  `json:"period_id" validate:"required,uuid"`
	EnrollmentDate *string `json:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
	IsScholarship  bool    `json:"is_scholarship"`
	ScholarshipPct float64 `json:"scholarship_pct" validate:"gte=0,lte=100"`
	IsRepeating    bool    `json:"is_repeating"`
	Notes          string  `json:"notes" validate:"max=2000"`
}

// AutoEnrollmentRequest is the self-service payload for a logged-in student.
type AutoEnrollmentRequest struct {
	SectionID string `json:"section_id" validate:"required,uuid"`
	PeriodID  string `json:"period_id" validate:"required,uuid"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// UpdateEnrollmentRequest edits flags and notes.
type UpdateEnrollmentRequest struct {
	IsScholarship  *bool    `json:"is_scholarship"`
	ScholarshipPct *float64 `json:"scholarship_pct" validate:"omitempty,gte=0,lte=100"`
	IsRepeating    *bool    `json:"is_repeating"`
	Notes          *string  `json:"notes" validate:"omitempty,max=2000"`
}

// ChangeEnrollmentStatusRequest moves an enrollment to another status.
type ChangeEnrollmentStatusRequest struct {
	Status EnrollmentStatus `json:"status" validate:"required"`
	Reason string           `json:"reason" validate:"max=1000"`
	Date   *string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// TransferSectionRequest moves an enrollment to another section.
type TransferSectionRequest struct {
	SectionID string `json:"section_id" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// EnrollmentDocument is a file attached to an enrollment.
type EnrollmentDocument struct {
	ID           string     `db:"id" json:"id"`
	EnrollmentID string     `db:"enrollment_id" json:"enrollment_id"`
	DocumentType string     `db:"document_type" json:"document_type"`
	FileName     string     `db:"file_name" json:"file_name"`
	URL          string     `db:"url" json:"url"`
	StorageKey   string     `db:"storage_key" json:"-"`
	MimeType     string     `db:"mime_type" json:"mime_type"`
	SizeBytes    int64      `db:"size_bytes" json:"size_bytes"`
	IsVerified   bool       `db:"is_verified" json:"is_verified"`
	VerifiedBy   *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt   *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	Notes        string     `db:"notes" json:"notes"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// VerifyDocumentRequest toggles verification of a document.
type VerifyDocumentRequest struct {
	Verified bool   `json:"verified"`
	Notes    string `json:"notes" validate:"max=1000"`
}

// EnrollmentStats summarises a period.
type EnrollmentStats struct {
	PeriodID  string         `json:"period_id"`
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByGrade   []GradeCount   `json:"by_grade"`
	Scholars  int            `json:"scholarships"`
	Repeating int            `json:"repeating"`
}

// GradeCount is one row of the per-grade breakdown.
type GradeCount struct {
	GradeID   string `db:"grade_id" json:"grade_id"`
	GradeName string `db:"grade_name" json:"grade_name"`
	LevelName string `db:"level_name" json:"level_name"`
	Count     int    `db:"count" json:"count"`
}

// StatusCount is one row of the per-status breakdown.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}
