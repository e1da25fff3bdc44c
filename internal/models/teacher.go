package models

import "time"

// Teacher is a staff member who teaches subjects.
type Teacher struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	FirstName       string     `db:"first_name" json:"first_name"`
	PaternalSurname string     `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname string     `db:"maternal_surname" json:"maternal_surname"`
	CI              string     `db:"ci" json:"ci"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender          string     `db:"gender" json:"gender"`
	Specialty       string     `db:"specialty" json:"specialty"`
	Degree          string     `db:"degree" json:"degree"`
	HireDate        *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	Phone           string     `db:"phone" json:"phone"`
	Email           string     `db:"email" json:"email"`
	Address         string     `db:"address" json:"address"`
	UserID          *string    `db:"user_id" json:"user_id,omitempty"`
	PhotoURL        *string    `db:"photo_url" json:"photo_url,omitempty"`
	CVURL           *string    `db:"cv_url" json:"cv_url,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

// FullName renders "first paternal maternal".
func (t Teacher) FullName() string {
	return joinName(t.FirstName, t.PaternalSurname, t.MaternalSurname)
}

// TeacherFilter narrows teacher listings.
type TeacherFilter struct {
	Search    string
	Status    string
	Specialty string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherRequest creates or updates a teacher.
type TeacherRequest struct {
	FirstName       string  `json:"first_name" validate:"required,max=100"`
	PaternalSurname string  `json:"paternal_surname" validate:"max=100"`
	MaternalSurname string  `json:"maternal_surname" validate:"max=100"`
	CI              string  `json:"ci" validate:"required,max=30"`
	BirthDate       *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"omitempty,oneof=M F"`
	Specialty       string  `json:"specialty" validate:"max=120"`
	Degree          string  `json:"degree" validate:"max=120"`
	HireDate        *string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	Phone           string  `json:"phone" validate:"max=40"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Address         string  `json:"address" validate:"max=500"`
	Status          string  `json:"status" validate:"omitempty,oneof=activo inactivo licencia"`
	CreateAccount   bool    `json:"create_account"`
}

// TeacherAssignment binds a teacher to a subject in a section for a period.
type TeacherAssignment struct {
	ID          string     `db:"id" json:"id"`
	TeacherID   string     `db:"teacher_id" json:"teacher_id"`
	GradeID     string     `db:"grade_id" json:"grade_id"`
	SubjectID   string     `db:"subject_id" json:"subject_id"`
	SectionID   string     `db:"section_id" json:"section_id"`
	PeriodID    string     `db:"period_id" json:"period_id"`
	WeeklyHours int        `db:"weekly_hours" json:"weekly_hours"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// TeacherAssignmentDetail adds names.
type TeacherAssignmentDetail struct {
	TeacherAssignment
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	SectionName string `db:"section_name" json:"section_name"`
	GradeName   string `db:"grade_name" json:"grade_name"`
	PeriodCode  string `db:"period_code" json:"period_code"`
}

// TeacherAssignmentRequest creates or updates an assignment.
type TeacherAssignmentRequest struct {
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	SectionID   string `json:"section_id" validate:"required,uuid"`
	PeriodID    string `json:"period_id" validate:"required,uuid"`
	WeeklyHours int    `json:"weekly_hours" validate:"gte=0,lte=40"`
}

// TeacherAssignmentFilter narrows assignment listings.
type TeacherAssignmentFilter struct {
	TeacherID string
	SectionID string
	PeriodID  string
	SubjectID string
}
