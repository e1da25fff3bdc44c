package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const periodColumns = `id, name, code, start_date, end_date, is_active, is_closed, description, created_at, updated_at, deleted_at`

// PeriodRepository manages academic periods.
type PeriodRepository struct {
	base
}

// NewPeriodRepository creates a PeriodRepository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{base{db: db}}
}

// FindByID returns a live period.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	if err := r.get(ctx, &period, `SELECT `+periodColumns+` FROM academic_periods WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the active period.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	if err := r.get(ctx, &period, `SELECT `+periodColumns+` FROM academic_periods WHERE is_active AND deleted_at IS NULL LIMIT 1`); err != nil {
		return nil, err
	}
	return &period, nil
}

// List returns periods newest first.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, int, error) {
	where := newWhere("deleted_at IS NULL")
	where.search(filter.Search, "name", "code")
	if filter.Active != nil {
		where.add("is_active = ?", *filter.Active)
	}
	from := " FROM academic_periods" + where.sql()

	var periods []models.AcademicPeriod
	query := "SELECT " + periodColumns + from + " ORDER BY start_date DESC" + limitOffset(filter.Page, filter.PageSize)
	if err := r.selectAll(ctx, &periods, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list periods: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count periods: %w", err)
	}
	return periods, total, nil
}

// FindOverlapping returns live periods whose closed range intersects [start, end].
func (r *PeriodRepository) FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods
WHERE deleted_at IS NULL AND start_date <= $2 AND end_date >= $1 AND ($3 = '' OR id::text <> $3)`
	var periods []models.AcademicPeriod
	if err := r.selectAll(ctx, &periods, query, start, end, excludeID); err != nil {
		return nil, fmt.Errorf("find overlapping periods: %w", err)
	}
	return periods, nil
}

// NameOrCodeTaken reports which of name and code are used by another live period.
func (r *PeriodRepository) NameOrCodeTaken(ctx context.Context, name, code, excludeID string) (nameTaken, codeTaken bool, err error) {
	var row struct {
		Name bool `db:"name_taken"`
		Code bool `db:"code_taken"`
	}
	query := `SELECT
EXISTS(SELECT 1 FROM academic_periods WHERE LOWER(name) = LOWER($1) AND deleted_at IS NULL AND ($3 = '' OR id::text <> $3)) AS name_taken,
EXISTS(SELECT 1 FROM academic_periods WHERE LOWER(code) = LOWER($2) AND deleted_at IS NULL AND ($3 = '' OR id::text <> $3)) AS code_taken`
	if err := r.get(ctx, &row, query, name, code, excludeID); err != nil {
		return false, false, fmt.Errorf("check period uniqueness: %w", err)
	}
	return row.Name, row.Code, nil
}

// Create inserts a period.
func (r *PeriodRepository) Create(ctx context.Context, period *models.AcademicPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now
	query := `INSERT INTO academic_periods (id, name, code, start_date, end_date, is_active, is_closed, description, created_at, updated_at)
VALUES (:id, :name, :code, :start_date, :end_date, :is_active, :is_closed, :description, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update persists editable fields.
func (r *PeriodRepository) Update(ctx context.Context, period *models.AcademicPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	query := `UPDATE academic_periods SET name = :name, code = :code, start_date = :start_date, end_date = :end_date,
description = :description, is_closed = :is_closed, is_active = :is_active, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// Activate marks id as the only active period.
func (r *PeriodRepository) Activate(ctx context.Context, id string) error {
	query := `UPDATE academic_periods SET is_active = (id = $1), updated_at = NOW() WHERE deleted_at IS NULL AND (is_active OR id = $1)`
	if _, err := r.exec(ctx, query, id); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}
	return nil
}

// SoftDelete marks the period deleted.
func (r *PeriodRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE academic_periods SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return nil
}

// HasEnrollments reports whether live enrollments reference the period.
func (r *PeriodRepository) HasEnrollments(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM enrollments WHERE period_id = $1 AND deleted_at IS NULL)`, id); err != nil {
		return false, fmt.Errorf("check period enrollments: %w", err)
	}
	return exists, nil
}
