package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const guardianColumns = `id, first_name, paternal_surname, maternal_surname, ci, phone, email, occupation, address, user_id, created_at, updated_at, deleted_at`

// GuardianRepository provides access to guardians.
type GuardianRepository struct {
	base
}

// NewGuardianRepository creates a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{base{db: db}}
}

// List returns guardians matching the filter.
func (r *GuardianRepository) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	where := newWhere("deleted_at IS NULL")
	where.search(filter.Search, "first_name", "paternal_surname", "maternal_surname", "COALESCE(ci, '')", "phone")
	from := " FROM guardians" + where.sql()

	var guardians []models.Guardian
	query := "SELECT " + guardianColumns + from + " ORDER BY paternal_surname, first_name" + limitOffset(filter.Page, filter.PageSize)
	if err := r.selectAll(ctx, &guardians, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list guardians: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count guardians: %w", err)
	}
	return guardians, total, nil
}

// FindByID returns a live guardian.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	var guardian models.Guardian
	if err := r.get(ctx, &guardian, `SELECT `+guardianColumns+` FROM guardians WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// FindByCI returns the oldest live guardian with the given CI.
func (r *GuardianRepository) FindByCI(ctx context.Context, ci string) (*models.Guardian, error) {
	var guardian models.Guardian
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE ci = $1 AND deleted_at IS NULL ORDER BY created_at LIMIT 1`
	if err := r.get(ctx, &guardian, query, ci); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// Create inserts a guardian.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now
	query := `INSERT INTO guardians (id, first_name, paternal_surname, maternal_surname, ci, phone, email, occupation, address, user_id, created_at, updated_at)
VALUES (:id, :first_name, :paternal_surname, :maternal_surname, :ci, :phone, :email, :occupation, :address, :user_id, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, guardian); err != nil {
		return fmt.Errorf("create guardian: %w", err)
	}
	return nil
}

// Update persists editable fields.
func (r *GuardianRepository) Update(ctx context.Context, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	query := `UPDATE guardians SET first_name = :first_name, paternal_surname = :paternal_surname, maternal_surname = :maternal_surname,
ci = :ci, phone = :phone, email = :email, occupation = :occupation, address = :address, user_id = :user_id, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, guardian); err != nil {
		return fmt.Errorf("update guardian: %w", err)
	}
	return nil
}

// SoftDelete marks the guardian and its links deleted.
func (r *GuardianRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE student_guardians SET deleted_at = NOW(), updated_at = NOW() WHERE guardian_id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete guardian links: %w", err)
	}
	if _, err := r.exec(ctx, `UPDATE guardians SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete guardian: %w", err)
	}
	return nil
}

// Children returns the live students linked to a guardian.
func (r *GuardianRepository) Children(ctx context.Context, guardianID string) ([]models.StudentSummary, error) {
	query := `SELECT s.id, s.code, TRIM(s.first_name || ' ' || s.paternal_surname || ' ' || s.maternal_surname) AS full_name, sg.relationship
FROM student_guardians sg JOIN students s ON s.id = sg.student_id AND s.deleted_at IS NULL
WHERE sg.guardian_id = $1 AND sg.deleted_at IS NULL
ORDER BY s.paternal_surname, s.first_name`
	var children []models.StudentSummary
	if err := r.selectAll(ctx, &children, query, guardianID); err != nil {
		return nil, fmt.Errorf("guardian children: %w", err)
	}
	return children, nil
}
