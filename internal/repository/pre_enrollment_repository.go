package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const preEnrollmentColumns = `id, code, period_id, grade_id, shift_id, status, student_first_name, student_paternal_surname,
student_maternal_surname, student_ci, student_birth_date, student_gender, student_address, previous_school, guardian_first_name,
guardian_paternal_surname, guardian_maternal_surname, guardian_ci, guardian_phone, guardian_email, guardian_relationship,
guardian_occupation, interview_date, interview_notes, rejection_reason, reviewed_by, converted_student_id, converted_enrollment_id,
converted_at, notes, created_at, updated_at, deleted_at`

const preEnrollmentDocumentColumns = `id, pre_enrollment_id, document_type, file_name, url, storage_key, mime_type, size_bytes, status,
review_notes, created_at, updated_at`

const quotaColumns = `id, period_id, grade_id, shift_id, total_seats, occupied_seats, created_at, updated_at`

// PreEnrollmentRepository manages admission requests, staged documents and quotas.
type PreEnrollmentRepository struct {
	base
}

// NewPreEnrollmentRepository creates a PreEnrollmentRepository.
func NewPreEnrollmentRepository(db *sqlx.DB) *PreEnrollmentRepository {
	return &PreEnrollmentRepository{base{db: db}}
}

func (r *PreEnrollmentRepository) List(ctx context.Context, filter models.PreEnrollmentFilter) ([]models.PreEnrollment, int, error) {
	where := newWhere("deleted_at IS NULL")
	if filter.PeriodID != "" {
		where.add("period_id = ?", filter.PeriodID)
	}
	if filter.GradeID != "" {
		where.add("grade_id = ?", filter.GradeID)
	}
	if filter.Status != "" {
		where.add("status = ?", string(filter.Status))
	}
	where.search(filter.Search, "code", "student_first_name", "student_paternal_surname", "student_ci", "guardian_first_name", "guardian_ci")
	from := " FROM pre_enrollments" + where.sql()

	var items []models.PreEnrollment
	query := "SELECT " + preEnrollmentColumns + from + " ORDER BY created_at DESC" + limitOffset(filter.Page, filter.PageSize)
	if err := r.selectAll(ctx, &items, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list pre-enrollments: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count pre-enrollments: %w", err)
	}
	return items, total, nil
}

func (r *PreEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.PreEnrollment, error) {
	var item models.PreEnrollment
	if err := r.get(ctx, &item, `SELECT `+preEnrollmentColumns+` FROM pre_enrollments WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// LockByID reads the request with a row lock. Must run inside a transaction.
func (r *PreEnrollmentRepository) LockByID(ctx context.Context, id string) (*models.PreEnrollment, error) {
	if !InTx(ctx) {
		return nil, fmt.Errorf("lock pre-enrollment: no transaction in context")
	}
	var item models.PreEnrollment
	if err := r.get(ctx, &item, `SELECT `+preEnrollmentColumns+` FROM pre_enrollments WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PreEnrollmentRepository) Create(ctx context.Context, item *models.PreEnrollment) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.PreEnrollmentStarted
	}
	stamp(&item.CreatedAt, &item.UpdatedAt)
	query := `INSERT INTO pre_enrollments (id, code, period_id, grade_id, shift_id, status, student_first_name, student_paternal_surname,
student_maternal_surname, student_ci, student_birth_date, student_gender, student_address, previous_school, guardian_first_name,
guardian_paternal_surname, guardian_maternal_surname, guardian_ci, guardian_phone, guardian_email, guardian_relationship,
guardian_occupation, notes, created_at, updated_at)
VALUES (:id, :code, :period_id, :grade_id, :shift_id, :status, :student_first_name, :student_paternal_surname,
:student_maternal_surname, :student_ci, :student_birth_date, :student_gender, :student_address, :previous_school, :guardian_first_name,
:guardian_paternal_surname, :guardian_maternal_surname, :guardian_ci, :guardian_phone, :guardian_email, :guardian_relationship,
:guardian_occupation, :notes, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, item); err != nil {
		return fmt.Errorf("create pre-enrollment: %w", err)
	}
	return nil
}

// Update persists every mutable column including workflow fields.
func (r *PreEnrollmentRepository) Update(ctx context.Context, item *models.PreEnrollment) error {
	item.UpdatedAt = time.Now().UTC()
	query := `UPDATE pre_enrollments SET status = :status, student_first_name = :student_first_name,
student_paternal_surname = :student_paternal_surname, student_maternal_surname = :student_maternal_surname,
student_ci = :student_ci, student_birth_date = :student_birth_date, student_gender = :student_gender,
student_address = :student_address, previous_school = :previous_school, guardian_first_name = :guardian_first_name,
guardian_paternal_surname = :guardian_paternal_surname, guardian_maternal_surname = :guardian_maternal_surname,
guardian_ci = :guardian_ci, guardian_phone = :guardian_phone, guardian_email = :guardian_email,
guardian_relationship = :guardian_relationship, guardian_occupation = :guardian_occupation,
interview_date = :interview_date, interview_notes = :interview_notes, rejection_reason = :rejection_reason,
reviewed_by = :reviewed_by, converted_student_id = :converted_student_id, converted_enrollment_id = :converted_enrollment_id,
converted_at = :converted_at, notes = :notes, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, item); err != nil {
		return fmt.Errorf("update pre-enrollment: %w", err)
	}
	return nil
}

func (r *PreEnrollmentRepository) CreateDocument(ctx context.Context, doc *models.PreEnrollmentDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}
	stamp(&doc.CreatedAt, &doc.UpdatedAt)
	query := `INSERT INTO pre_enrollment_documents (id, pre_enrollment_id, document_type, file_name, url, storage_key, mime_type, size_bytes, status, review_notes, created_at, updated_at)
VALUES (:id, :pre_enrollment_id, :document_type, :file_name, :url, :storage_key, :mime_type, :size_bytes, :status, :review_notes, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, doc); err != nil {
		return fmt.Errorf("create pre-enrollment document: %w", err)
	}
	return nil
}

func (r *PreEnrollmentRepository) Documents(ctx context.Context, preEnrollmentID string) ([]models.PreEnrollmentDocument, error) {
	var docs []models.PreEnrollmentDocument
	query := `SELECT ` + preEnrollmentDocumentColumns + ` FROM pre_enrollment_documents WHERE pre_enrollment_id = $1 ORDER BY created_at`
	if err := r.selectAll(ctx, &docs, query, preEnrollmentID); err != nil {
		return nil, fmt.Errorf("list pre-enrollment documents: %w", err)
	}
	return docs, nil
}

func (r *PreEnrollmentRepository) FindDocument(ctx context.Context, preEnrollmentID, documentID string) (*models.PreEnrollmentDocument, error) {
	var doc models.PreEnrollmentDocument
	query := `SELECT ` + preEnrollmentDocumentColumns + ` FROM pre_enrollment_documents WHERE id = $1 AND pre_enrollment_id = $2`
	if err := r.get(ctx, &doc, query, documentID, preEnrollmentID); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *PreEnrollmentRepository) ReviewDocument(ctx context.Context, doc *models.PreEnrollmentDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	query := `UPDATE pre_enrollment_documents SET status = :status, review_notes = :review_notes, updated_at = :updated_at WHERE id = :id`
	if err := r.namedExec(ctx, query, doc); err != nil {
		return fmt.Errorf("review pre-enrollment document: %w", err)
	}
	return nil
}

// ListQuotas returns the quotas of a period.
func (r *PreEnrollmentRepository) ListQuotas(ctx context.Context, periodID string) ([]models.EnrollmentQuota, error) {
	var quotas []models.EnrollmentQuota
	if err := r.selectAll(ctx, &quotas, `SELECT `+quotaColumns+` FROM enrollment_quotas WHERE period_id = $1 ORDER BY grade_id, shift_id`, periodID); err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}
	return quotas, nil
}

// FindQuota returns the quota for a (period, grade, shift).
func (r *PreEnrollmentRepository) FindQuota(ctx context.Context, periodID, gradeID, shiftID string) (*models.EnrollmentQuota, error) {
	var quota models.EnrollmentQuota
	query := `SELECT ` + quotaColumns + ` FROM enrollment_quotas WHERE period_id = $1 AND grade_id = $2 AND shift_id = $3`
	if err := r.get(ctx, &quota, query, periodID, gradeID, shiftID); err != nil {
		return nil, err
	}
	return &quota, nil
}

// UpsertQuota creates the quota or resizes it. Shrinking below the occupied
// count matches no row and returns ErrNoSeat.
func (r *PreEnrollmentRepository) UpsertQuota(ctx context.Context, quota *models.EnrollmentQuota) error {
	if quota.ID == "" {
		quota.ID = uuid.NewString()
	}
	query := `INSERT INTO enrollment_quotas (id, period_id, grade_id, shift_id, total_seats, occupied_seats, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
ON CONFLICT (period_id, grade_id, shift_id) DO UPDATE SET total_seats = EXCLUDED.total_seats, updated_at = NOW()
WHERE enrollment_quotas.occupied_seats <= EXCLUDED.total_seats
RETURNING ` + quotaColumns
	if err := r.get(ctx, quota, query, quota.ID, quota.PeriodID, quota.GradeID, quota.ShiftID, quota.TotalSeats); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoSeat
		}
		return fmt.Errorf("upsert quota: %w", err)
	}
	return nil
}

// ReserveQuota takes one seat from the quota only while seats remain.
func (r *PreEnrollmentRepository) ReserveQuota(ctx context.Context, periodID, gradeID, shiftID string) error {
	query := `UPDATE enrollment_quotas SET occupied_seats = occupied_seats + 1, updated_at = NOW()
WHERE period_id = $1 AND grade_id = $2 AND shift_id = $3 AND occupied_seats < total_seats
RETURNING id`
	var id string
	if err := r.get(ctx, &id, query, periodID, gradeID, shiftID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoSeat
		}
		return fmt.Errorf("reserve quota: %w", err)
	}
	return nil
}

// ReleaseQuota gives one seat back, never going below zero.
func (r *PreEnrollmentRepository) ReleaseQuota(ctx context.Context, periodID, gradeID, shiftID string) error {
	query := `UPDATE enrollment_quotas SET occupied_seats = occupied_seats - 1, updated_at = NOW()
WHERE period_id = $1 AND grade_id = $2 AND shift_id = $3 AND occupied_seats > 0`
	if _, err := r.exec(ctx, query, periodID, gradeID, shiftID); err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}
