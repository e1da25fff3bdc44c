package models

import "time"

// Level is an educational level (inicial, primaria, secundaria).
type Level struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Code      string     `db:"code" json:"code"`
	SortOrder int        `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Grade belongs to a level.
type Grade struct {
	ID        string     `db:"id" json:"id"`
	LevelID   string     `db:"level_id" json:"level_id"`
	LevelName string     `db:"level_name" json:"level_name,omitempty"`
	Name      string     `db:"name" json:"name"`
	SortOrder int        `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Shift is a school day slot (mañana, tarde, noche).
type Shift struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Section is a class group with a fixed capacity.
type Section struct {
	ID        string     `db:"id" json:"id"`
	GradeID   string     `db:"grade_id" json:"grade_id"`
	ShiftID   string     `db:"shift_id" json:"shift_id"`
	Name      string     `db:"name" json:"name"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Classroom string     `db:"classroom" json:"classroom"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// SectionDetail adds names and occupancy for a period.
type SectionDetail struct {
	Section
	GradeName string `db:"grade_name" json:"grade_name"`
	LevelName string `db:"level_name" json:"level_name"`
	ShiftName string `db:"shift_name" json:"shift_name"`
	Occupied  int    `db:"occupied" json:"occupied"`
	Available int    `db:"-" json:"available"`
}

// Subject is a course taught in a level.
type Subject struct {
	ID        string     `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	LevelID   *string    `db:"level_id" json:"level_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// LevelRequest creates or updates a level.
type LevelRequest struct {
	Name      string `json:"name" validate:"required,max=80"`
	Code      string `json:"code" validate:"required,max=20"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// GradeRequest creates or updates a grade.
type GradeRequest struct {
	LevelID   string `json:"level_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=80"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

// ShiftRequest creates or updates a shift.
type ShiftRequest struct {
	Name      string `json:"name" validate:"required,max=60"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

// SectionRequest creates or updates a section.
type SectionRequest struct {
	GradeID   string `json:"grade_id" validate:"required,uuid"`
	ShiftID   string `json:"shift_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=20"`
	Capacity  int    `json:"capacity" validate:"required,gt=0,lte=200"`
	Classroom string `json:"classroom" validate:"max=60"`
}

// SubjectRequest creates or updates a subject.
type SubjectRequest struct {
	Code    string  `json:"code" validate:"required,max=20"`
	Name    string  `json:"name" validate:"required,max=120"`
	LevelID *string `json:"level_id" validate:"omitempty,uuid"`
}

// SectionFilter narrows section listings.
type SectionFilter struct {
	GradeID  string
	ShiftID  string
	PeriodID string
}
