package models

import "time"

// Vacation enrollment statuses.
const (
	VacationEnrolled  = "inscrito"
	VacationCancelled = "anulado"
)

// VacationPeriod groups vacation courses.
type VacationPeriod struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Code            string     `db:"code" json:"code"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         time.Time  `db:"end_date" json:"end_date"`
	EnrollmentStart *time.Time `db:"enrollment_start" json:"enrollment_start,omitempty"`
	EnrollmentEnd   *time.Time `db:"enrollment_end" json:"enrollment_end,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	Description     string     `db:"description" json:"description"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

// EnrollmentOpen reports whether registrations are accepted on day.
func (p VacationPeriod) EnrollmentOpen(day time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.EnrollmentStart != nil && day.Before(*p.EnrollmentStart) {
		return false
	}
	if p.EnrollmentEnd != nil && day.After(p.EnrollmentEnd.Add(24*time.Hour-time.Nanosecond)) {
		return false
	}
	return true
}

// VacationPeriodRequest creates or updates a vacation period.
type VacationPeriodRequest struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Code            string  `json:"code" validate:"required,max=40"`
	StartDate       string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	EnrollmentStart *string `json:"enrollment_start" validate:"omitempty,datetime=2006-01-02"`
	EnrollmentEnd   *string `json:"enrollment_end" validate:"omitempty,datetime=2006-01-02"`
	IsActive        *bool   `json:"is_active"`
	Description     string  `json:"description" validate:"max=1000"`
}

// VacationCourse is a course offered in a vacation period.
type VacationCourse struct {
	ID               string     `db:"id" json:"id"`
	VacationPeriodID string     `db:"vacation_period_id" json:"vacation_period_id"`
	Name             string     `db:"name" json:"name"`
	Description      string     `db:"description" json:"description"`
	Area             string     `db:"area" json:"area"`
	InstructorName   string     `db:"instructor_name" json:"instructor_name"`
	Schedule         string     `db:"schedule" json:"schedule"`
	MinAge           int        `db:"min_age" json:"min_age"`
	MaxAge           int        `db:"max_age" json:"max_age"`
	Cost             float64    `db:"cost" json:"cost"`
	TotalSeats       int        `db:"total_seats" json:"total_seats"`
	OccupiedSeats    int        `db:"occupied_seats" json:"occupied_seats"`
	StartDate        *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate          *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"-"`
}

// AvailableSeats returns free seats, never negative.
func (c VacationCourse) AvailableSeats() int {
	if c.OccupiedSeats >= c.TotalSeats {
		return 0
	}
	return c.TotalSeats - c.OccupiedSeats
}

// VacationCourseRequest creates or updates a course.
type VacationCourseRequest struct {
	VacationPeriodID string  `json:"vacation_period_id" validate:"required,uuid"`
	Name             string  `json:"name" validate:"required,max=160"`
	Description      string  `json:"description" validate:"max=2000"`
	Area             string  `json:"area" validate:"max=80"`
	InstructorName   string  `json:"instructor_name" validate:"max=160"`
	Schedule         string  `json:"schedule" validate:"max=160"`
	MinAge           int     `json:"min_age" validate:"gte=0,lte=99"`
	MaxAge           int     `json:"max_age" validate:"gte=0,lte=99"`
	Cost             float64 `json:"cost" validate:"gte=0"`
	TotalSeats       int     `json:"total_seats" validate:"gte=0,lte=1000"`
	StartDate        *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate          *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive         *bool   `json:"is_active"`
}

// VacationCourseFilter narrows course listings.
type VacationCourseFilter struct {
	VacationPeriodID string
	Area             string
	Active           *bool
	Search           string
}

// VacationEnrollment registers a participant in a course.
type VacationEnrollment struct {
	ID                   string     `db:"id" json:"id"`
	Code                 string     `db:"code" json:"code"`
	VacationCourseID     string     `db:"vacation_course_id" json:"vacation_course_id"`
	StudentID            *string    `db:"student_id" json:"student_id,omitempty"`
	ParticipantName      string     `db:"participant_name" json:"participant_name"`
	ParticipantCI        string     `db:"participant_ci" json:"participant_ci"`
	ParticipantBirthDate *time.Time `db:"participant_birth_date" json:"participant_birth_date,omitempty"`
	PayerName            string     `db:"payer_name" json:"payer_name"`
	PayerCI              string     `db:"payer_ci" json:"payer_ci"`
	PayerPhone           string     `db:"payer_phone" json:"payer_phone"`
	PayerEmail           string     `db:"payer_email" json:"payer_email"`
	Amount               float64    `db:"amount" json:"amount"`
	PaymentMethod        string     `db:"payment_method" json:"payment_method"`
	PaymentReference     string     `db:"payment_reference" json:"payment_reference"`
	PaymentVerified      bool       `db:"payment_verified" json:"payment_verified"`
	PaymentVerifiedBy    *string    `db:"payment_verified_by" json:"payment_verified_by,omitempty"`
	PaymentVerifiedAt    *time.Time `db:"payment_verified_at" json:"payment_verified_at,omitempty"`
	Status               string     `db:"status" json:"status"`
	Notes                string     `db:"notes" json:"notes"`
	CreatedBy            *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt            *time.Time `db:"deleted_at" json:"-"`
}

// VacationEnrollmentDetail adds course data.
type VacationEnrollmentDetail struct {
	VacationEnrollment
	CourseName     string `db:"course_name" json:"course_name"`
	CourseSchedule string `db:"course_schedule" json:"course_schedule"`
	PeriodCode     string `db:"period_code" json:"period_code"`
}

// VacationEnrollmentRequest creates a vacation enrollment.
type VacationEnrollmentRequest struct {
	VacationCourseID     string   `json:"vacation_course_id" validate:"required,uuid"`
	StudentID            *string  `json:"student_id" validate:"omitempty,uuid"`
	ParticipantName      string   `json:"participant_name" validate:"required,max=200"`
	ParticipantCI        string   `json:"participant_ci" validate:"max=30"`
	ParticipantBirthDate *string  `json:"participant_birth_date" validate:"omitempty,datetime=2006-01-02"`
	PayerName            string   `json:"payer_name" validate:"required,max=200"`
	PayerCI              string   `json:"payer_ci" validate:"max=30"`
	PayerPhone           string   `json:"payer_phone" validate:"max=40"`
	PayerEmail           string   `json:"payer_email" validate:"omitempty,email"`
	Amount               *float64 `json:"amount" validate:"omitempty,gte=0"`
	PaymentMethod        string   `json:"payment_method" validate:"omitempty,oneof=efectivo transferencia qr deposito"`
	PaymentReference     string   `json:"payment_reference" validate:"max=120"`
	Notes                string   `json:"notes" validate:"max=1000"`
}

// VerifyPaymentRequest confirms a payment.
type VerifyPaymentRequest struct {
	PaymentReference string `json:"payment_reference" validate:"max=120"`
	PaymentMethod    string `json:"payment_method" validate:"omitempty,oneof=efectivo transferencia qr deposito"`
}

// VacationEnrollmentFilter narrows vacation enrollment listings.
type VacationEnrollmentFilter struct {
	VacationCourseID string
	VacationPeriodID string
	PaymentVerified  *bool
	Status           string
	Search           string
	Page             int
	PageSize         int
}
