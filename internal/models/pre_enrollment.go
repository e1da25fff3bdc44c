package models

import "time"

// PreEnrollmentStatus is a node of the admission workflow.
type PreEnrollmentStatus string

// Admission workflow states.
const (
	PreEnrollmentStarted            PreEnrollmentStatus = "iniciada"
	PreEnrollmentDataComplete       PreEnrollmentStatus = "datos_completos"
	PreEnrollmentDocumentsPending   PreEnrollmentStatus = "documentos_pendientes"
	PreEnrollmentInReview           PreEnrollmentStatus = "en_revision"
	PreEnrollmentDocumentsApproved  PreEnrollmentStatus = "documentos_aprobados"
	PreEnrollmentInterviewScheduled PreEnrollmentStatus = "entrevista_programada"
	PreEnrollmentInterviewDone      PreEnrollmentStatus = "entrevista_completada"
	PreEnrollmentApproved           PreEnrollmentStatus = "aprobada"
	PreEnrollmentConverted          PreEnrollmentStatus = "convertida"
	PreEnrollmentRejected           PreEnrollmentStatus = "rechazada"
	PreEnrollmentCancelled          PreEnrollmentStatus = "cancelada"
	PreEnrollmentExpired            PreEnrollmentStatus = "expirada"
)

var preEnrollmentForward = map[PreEnrollmentStatus][]PreEnrollmentStatus{
	PreEnrollmentStarted:            {PreEnrollmentDataComplete},
	PreEnrollmentDataComplete:       {PreEnrollmentDocumentsPending},
	PreEnrollmentDocumentsPending:   {PreEnrollmentInReview},
	PreEnrollmentInReview:           {PreEnrollmentDocumentsPending, PreEnrollmentDocumentsApproved},
	PreEnrollmentDocumentsApproved:  {PreEnrollmentInterviewScheduled},
	PreEnrollmentInterviewScheduled: {PreEnrollmentInterviewDone},
	PreEnrollmentInterviewDone:      {PreEnrollmentApproved},
	PreEnrollmentApproved:           {PreEnrollmentConverted},
}

// Terminal reports whether no further transition is possible.
func (s PreEnrollmentStatus) Terminal() bool {
	switch s {
	case PreEnrollmentConverted, PreEnrollmentRejected, PreEnrollmentCancelled, PreEnrollmentExpired:
		return true
	}
	return false
}

// Closing reports whether s ends the workflow without conversion.
func (s PreEnrollmentStatus) Closing() bool {
	return s == PreEnrollmentRejected || s == PreEnrollmentCancelled || s == PreEnrollmentExpired
}

// Valid reports whether s is a known state.
func (s PreEnrollmentStatus) Valid() bool {
	if _, ok := preEnrollmentForward[s]; ok {
		return true
	}
	return s.Terminal()
}

// CanTransition reports whether from -> to is an edge of the workflow.
// Conversion has its own operation and is not reachable through here.
func CanTransition(from, to PreEnrollmentStatus) bool {
	if from.Terminal() || to == PreEnrollmentConverted {
		return false
	}
	if to.Closing() {
		return true
	}
	for _, next := range preEnrollmentForward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PreEnrollment is an admission request for a prospective student.
type PreEnrollment struct {
	ID                      string              `db:"id" json:"id"`
	Code                    string              `db:"code" json:"code"`
	PeriodID                string              `db:"period_id" json:"period_id"`
	GradeID                 string              `db:"grade_id" json:"grade_id"`
	ShiftID                 string              `db:"shift_id" json:"shift_id"`
	Status                  PreEnrollmentStatus `db:"status" json:"status"`
	StudentFirstName        string              `db:"student_first_name" json:"student_first_name"`
	StudentPaternalSurname  string              `db:"student_paternal_surname" json:"student_paternal_surname"`
	StudentMaternalSurname  string              `db:"student_maternal_surname" json:"student_maternal_surname"`
	StudentCI               string              `db:"student_ci" json:"student_ci"`
	StudentBirthDate        *time.Time          `db:"student_birth_date" json:"student_birth_date,omitempty"`
	StudentGender           string              `db:"student_gender" json:"student_gender"`
	StudentAddress          string              `db:"student_address" json:"student_address"`
	PreviousSchool          string              `db:"previous_school" json:"previous_school"`
	GuardianFirstName       string              `db:"guardian_first_name" json:"guardian_first_name"`
	GuardianPaternalSurname string              `db:"guardian_paternal_surname" json:"guardian_paternal_surname"`
	GuardianMaternalSurname string              `db:"guardian_maternal_surname" json:"guardian_maternal_surname"`
	GuardianCI              string              `db:"guardian_ci" json:"guardian_ci"`
	GuardianPhone           string              `db:"guardian_phone" json:"guardian_phone"`
	GuardianEmail           string              `db:"guardian_email" json:"guardian_email"`
	GuardianRelationship    string              `db:"guardian_relationship" json:"guardian_relationship"`
	GuardianOccupation      string              `db:"guardian_occupation" json:"guardian_occupation"`
	InterviewDate           *time.Time          `db:"interview_date" json:"interview_date,omitempty"`
	InterviewNotes          string              `db:"interview_notes" json:"interview_notes"`
	RejectionReason         string              `db:"rejection_reason" json:"rejection_reason"`
	ReviewedBy              *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ConvertedStudentID      *string             `db:"converted_student_id" json:"converted_student_id,omitempty"`
	ConvertedEnrollmentID   *string             `db:"converted_enrollment_id" json:"converted_enrollment_id,omitempty"`
	ConvertedAt             *time.Time          `db:"converted_at" json:"converted_at,omitempty"`
	Notes                   string              `db:"notes" json:"notes"`
	CreatedAt               time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time           `db:"updated_at" json:"updated_at"`
	DeletedAt               *time.Time          `db:"deleted_at" json:"-"`
}

// StudentFullName renders the prospective student's name.
func (p PreEnrollment) StudentFullName() string {
	return joinName(p.StudentFirstName, p.StudentPaternalSurname, p.StudentMaternalSurname)
}

// GuardianFullName renders the guardian's name.
func (p PreEnrollment) GuardianFullName() string {
	return joinName(p.GuardianFirstName, p.GuardianPaternalSurname, p.GuardianMaternalSurname)
}

// PreEnrollmentDetail adds documents.
type PreEnrollmentDetail struct {
	PreEnrollment
	Documents []PreEnrollmentDocument `json:"documents"`
}

// PreEnrollmentRequest creates or updates an admission request.
type PreEnrollmentRequest struct {
	PeriodID                string  `json:"period_id" validate:"required,uuid"`
	GradeID                 string  `json:"grade_id" validate:"required,uuid"`
	ShiftID                 string  `json:"shift_id" validate:"required,uuid"`
	StudentFirstName        string  `json:"student_first_name" validate:"required,max=100"`
	StudentPaternalSurname  string  `json:"student_paternal_surname" validate:"max=100"`
	StudentMaternalSurname  string  `json:"student_maternal_surname" validate:"max=100"`
	StudentCI               string  `json:"student_ci" validate:"max=30"`
	StudentBirthDate        *string `json:"student_birth_date" validate:"omitempty,datetime=2006-01-02"`
	StudentGender           string  `json:"student_gender" validate:"omitempty,oneof=M F"`
	StudentAddress          string  `json:"student_address" validate:"max=500"`
	PreviousSchool          string  `json:"previous_school" validate:"max=200"`
	GuardianFirstName       string  `json:"guardian_first_name" validate:"required,max=100"`
	GuardianPaternalSurname string  `json:"guardian_paternal_surname" validate:"max=100"`
	GuardianMaternalSurname string  `json:"guardian_maternal_surname" validate:"max=100"`
	GuardianCI              string  `json:"guardian_ci" validate:"max=30"`
	GuardianPhone           string  `json:"guardian_phone" validate:"max=40"`
	GuardianEmail           string  `json:"guardian_email" validate:"omitempty,email"`
	GuardianRelationship    string  `json:"guardian_relationship" validate:"omitempty,oneof=padre madre tutor abuelo abuela tio tia hermano hermana otro"`
	GuardianOccupation      string  `json:"guardian_occupation" validate:"max=120"`
	Notes                   string  `json:"notes" validate:"max=2000"`
}

// PreEnrollmentTransitionRequest moves the workflow along one edge.
type PreEnrollmentTransitionRequest struct {
	Status         PreEnrollmentStatus `json:"status" validate:"required"`
	Reason         string              `json:"reason" validate:"max=1000"`
	InterviewDate  *time.Time          `json:"interview_date"`
	InterviewNotes string              `json:"interview_notes" validate:"max=2000"`
}

// ConvertPreEnrollmentRequest supplies what the conversion needs beyond the request data.
type ConvertPreEnrollmentRequest struct {
	SectionID             string `json:"section_id" validate:"required,uuid"`
	CreateStudentAccount  bool   `json:"create_student_account"`
	CreateGuardianAccount bool   `json:"create_guardian_account"`
}

// ConversionResult reports the ids created by a conversion.
type ConversionResult struct {
	PreEnrollmentID  string       `json:"pre_enrollment_id"`
	StudentID        string       `json:"student_id"`
	StudentCode      string       `json:"student_code"`
	GuardianID       string       `json:"guardian_id"`
	GuardianReused   bool         `json:"guardian_reused"`
	EnrollmentID     string       `json:"enrollment_id"`
	EnrollmentNumber string       `json:"enrollment_number"`
	StudentAccount   *Credentials `json:"student_account,omitempty"`
	GuardianAccount  *Credentials `json:"guardian_account,omitempty"`
	DocumentsMoved   int          `json:"documents_moved"`
}

// PreEnrollmentFilter narrows listings.
type PreEnrollmentFilter struct {
	PeriodID string
	GradeID  string
	Status   PreEnrollmentStatus
	Search   string
	Page     int
	PageSize int
}

// Staged document review states.
const (
	DocumentPending  = "pendiente"
	DocumentApproved = "aprobado"
	DocumentRejected = "rechazado"
)

// PreEnrollmentDocument is a staged upload attached to a pre-enrollment.
type PreEnrollmentDocument struct {
	ID              string    `db:"id" json:"id"`
	PreEnrollmentID string    `db:"pre_enrollment_id" json:"pre_enrollment_id"`
	DocumentType    string    `db:"document_type" json:"document_type"`
	FileName        string    `db:"file_name" json:"file_name"`
	URL             string    `db:"url" json:"url"`
	StorageKey      string    `db:"storage_key" json:"-"`
	MimeType        string    `db:"mime_type" json:"mime_type"`
	SizeBytes       int64     `db:"size_bytes" json:"size_bytes"`
	Status          string    `db:"status" json:"status"`
	ReviewNotes     string    `db:"review_notes" json:"review_notes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDocumentRequest approves or rejects a staged document.
type ReviewDocumentRequest struct {
	Status string `json:"status" validate:"required,oneof=aprobado rechazado pendiente"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// EnrollmentQuota caps admissions for a (period, grade, shift).
type EnrollmentQuota struct {
	ID            string    `db:"id" json:"id"`
	PeriodID      string    `db:"period_id" json:"period_id"`
	GradeID       string    `db:"grade_id" json:"grade_id"`
	ShiftID       string    `db:"shift_id" json:"shift_id"`
	TotalSeats    int       `db:"total_seats" json:"total_seats"`
	OccupiedSeats int       `db:"occupied_seats" json:"occupied_seats"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// QuotaRequest creates or resizes a quota.
type QuotaRequest struct {
	PeriodID   string `json:"period_id" validate:"required,uuid"`
	GradeID    string `json:"grade_id" validate:"required,uuid"`
	ShiftID    string `json:"shift_id" validate:"required,uuid"`
	TotalSeats int    `json:"total_seats" validate:"gte=0,lte=5000"`
}
