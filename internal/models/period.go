package models

import "time"

// AcademicPeriod is a school year or term.
type AcademicPeriod struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Code        string     `db:"code" json:"code"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     time.Time  `db:"end_date" json:"end_date"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	IsClosed    bool       `db:"is_closed" json:"is_closed"`
	Description string     `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// Overlaps reports whether the closed date ranges intersect.
func (p AcademicPeriod) Overlaps(start, end time.Time) bool {
	return !start.After(p.EndDate) && !end.Before(p.StartDate)
}

// PeriodRequest creates or replaces a period.
type PeriodRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Code        string `json:"code" validate:"required,max=40"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=1000"`
}

// PeriodFilter narrows period listings.
type PeriodFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}
