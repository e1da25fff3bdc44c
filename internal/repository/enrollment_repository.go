package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const enrollmentColumns = `id, enrollment_number, student_id, section_id, period_id, enrollment_date, status, is_scholarship, scholarship_pct,
is_repeating, withdrawal_date, withdrawal_reason, notes, created_by, created_at, updated_at, deleted_at`

const enrollmentDetailSelect = `SELECT e.id, e.enrollment_number, e.student_id, e.section_id, e.period_id, e.enrollment_date, e.status,
e.is_scholarship, e.scholarship_pct, e.is_repeating, e.withdrawal_date, e.withdrawal_reason, e.notes, e.created_by,
e.created_at, e.updated_at, e.deleted_at,
s.code AS student_code, TRIM(s.first_name || ' ' || s.paternal_surname || ' ' || s.maternal_surname) AS student_name, s.ci AS student_ci,
sec.name AS section_name, g.id AS grade_id, g.name AS grade_name, l.name AS level_name, sh.name AS shift_name,
p.code AS period_code, p.name AS period_name`

const enrollmentDetailFrom = ` FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN sections sec ON sec.id = e.section_id
JOIN grades g ON g.id = sec.grade_id
JOIN levels l ON l.id = g.level_id
JOIN shifts sh ON sh.id = sec.shift_id
JOIN academic_periods p ON p.id = e.period_id`

// MaxExportRows caps unpaged enrollment exports.
const MaxExportRows = 10000

// EnrollmentRepository handles enrollments and their documents.
type EnrollmentRepository struct {
	base
}

// NewEnrollmentRepository creates an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{base{db: db}}
}

func enrollmentWhere(filter models.EnrollmentFilter) *whereBuilder {
	where := newWhere("e.deleted_at IS NULL")
	if filter.PeriodID != "" {
		where.add("e.period_id = ?", filter.PeriodID)
	}
	if filter.SectionID != "" {
		where.add("e.section_id = ?", filter.SectionID)
	}
	if filter.GradeID != "" {
		where.add("sec.grade_id = ?", filter.GradeID)
	}
	if filter.StudentID != "" {
		where.add("e.student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		where.add("e.status = ?", string(filter.Status))
	}
	where.search(filter.Search, "e.enrollment_number", "s.code", "s.first_name", "s.paternal_surname", "s.maternal_surname", "COALESCE(s.ci, '')")
	return where
}

var enrollmentSorts = map[string]string{
	"enrollment_number": "e.enrollment_number",
	"enrollment_date":   "e.enrollment_date",
	"student":           "s.paternal_surname",
	"status":            "e.status",
	"created_at":        "e.created_at",
}

// List returns enrollments with student and placement details.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	where := enrollmentWhere(filter)
	from := enrollmentDetailFrom + where.sql()
	query := enrollmentDetailSelect + from + orderBy(filter.SortBy, filter.SortOrder, enrollmentSorts, "e.created_at") + limitOffset(filter.Page, filter.PageSize)

	var enrollments []models.EnrollmentDetail
	if err := r.selectAll(ctx, &enrollments, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListForExport returns every matching enrollment up to MaxExportRows.
func (r *EnrollmentRepository) ListForExport(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	where := enrollmentWhere(filter)
	query := enrollmentDetailSelect + enrollmentDetailFrom + where.sql() +
		" ORDER BY g.sort_order, sec.name, s.paternal_surname, s.first_name" + fmt.Sprintf(" LIMIT %d", MaxExportRows)
	var enrollments []models.EnrollmentDetail
	if err := r.selectAll(ctx, &enrollments, query, where.args...); err != nil {
		return nil, fmt.Errorf("export enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns a live enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.get(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetail returns a live enrollment with joined names.
func (r *EnrollmentRepository) FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.get(ctx, &detail, enrollmentDetailSelect+enrollmentDetailFrom+` WHERE e.id = $1 AND e.deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentPeriod reports whether a live enrollment exists for the pair.
func (r *EnrollmentRepository) ExistsForStudentPeriod(ctx context.Context, studentID, periodID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND period_id = $2 AND deleted_at IS NULL)`
	if err := r.get(ctx, &exists, query, studentID, periodID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentActive
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	query := `INSERT INTO enrollments (id, enrollment_number, student_id, section_id, period_id, enrollment_date, status, is_scholarship,
scholarship_pct, is_repeating, notes, created_by, created_at, updated_at)
VALUES (:id, :enrollment_number, :student_id, :section_id, :period_id, :enrollment_date, :status, :is_scholarship,
:scholarship_pct, :is_repeating, :notes, :created_by, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update persists mutable fields including status and section.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	query := `UPDATE enrollments SET section_id = :section_id, status = :status, is_scholarship = :is_scholarship,
scholarship_pct = :scholarship_pct, is_repeating = :is_repeating, withdrawal_date = :withdrawal_date,
withdrawal_reason = :withdrawal_reason, notes = :notes, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// SoftDelete marks the enrollment and its documents deleted.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE enrollment_documents SET deleted_at = NOW(), updated_at = NOW() WHERE enrollment_id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete enrollment documents: %w", err)
	}
	if _, err := r.exec(ctx, `UPDATE enrollments SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// CountByStatus groups live enrollments of a period by status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, periodID string) ([]models.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM enrollments WHERE period_id = $1 AND deleted_at IS NULL GROUP BY status ORDER BY status`
	var rows []models.StatusCount
	if err := r.selectAll(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return rows, nil
}

// CountByGrade groups active enrollments of a period by grade.
func (r *EnrollmentRepository) CountByGrade(ctx context.Context, periodID string) ([]models.GradeCount, error) {
	query := `SELECT g.id AS grade_id, g.name AS grade_name, l.name AS level_name, COUNT(*) AS count
FROM enrollments e
JOIN sections sec ON sec.id = e.section_id
JOIN grades g ON g.id = sec.grade_id
JOIN levels l ON l.id = g.level_id
WHERE e.period_id = $1 AND e.deleted_at IS NULL AND e.status = 'activo'
GROUP BY g.id, g.name, l.name, l.sort_order, g.sort_order
ORDER BY l.sort_order, g.sort_order`
	var rows []models.GradeCount
	if err := r.selectAll(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("count by grade: %w", err)
	}
	return rows, nil
}

// CountFlags returns scholarship and repeating headcounts for a period.
func (r *EnrollmentRepository) CountFlags(ctx context.Context, periodID string) (scholars, repeating int, err error) {
	var row struct {
		Scholars  int `db:"scholars"`
		Repeating int `db:"repeating"`
	}
	query := `SELECT COUNT(*) FILTER (WHERE is_scholarship) AS scholars, COUNT(*) FILTER (WHERE is_repeating) AS repeating
FROM enrollments WHERE period_id = $1 AND deleted_at IS NULL AND status = 'activo'`
	if err := r.get(ctx, &row, query, periodID); err != nil {
		return 0, 0, fmt.Errorf("count flags: %w", err)
	}
	return row.Scholars, row.Repeating, nil
}

const documentColumns = `id, enrollment_id, document_type, file_name, url, storage_key, mime_type, size_bytes, is_verified, verified_by,
verified_at, notes, created_at, updated_at, deleted_at`

// CreateDocument attaches a stored file to an enrollment.
func (r *EnrollmentRepository) CreateDocument(ctx context.Context, doc *models.EnrollmentDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	query := `INSERT INTO enrollment_documents (id, enrollment_id, document_type, file_name, url, storage_key, mime_type, size_bytes, is_verified, notes, created_at, updated_at)
VALUES (:id, :enrollment_id, :document_type, :file_name, :url, :storage_key, :mime_type, :size_bytes, :is_verified, :notes, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, doc); err != nil {
		return fmt.Errorf("create enrollment document: %w", err)
	}
	return nil
}

// Documents lists live documents of an enrollment.
func (r *EnrollmentRepository) Documents(ctx context.Context, enrollmentID string) ([]models.EnrollmentDocument, error) {
	var docs []models.EnrollmentDocument
	query := `SELECT ` + documentColumns + ` FROM enrollment_documents WHERE enrollment_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	if err := r.selectAll(ctx, &docs, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment documents: %w", err)
	}
	return docs, nil
}

// FindDocument returns a live document of an enrollment.
func (r *EnrollmentRepository) FindDocument(ctx context.Context, enrollmentID, documentID string) (*models.EnrollmentDocument, error) {
	var doc models.EnrollmentDocument
	query := `SELECT ` + documentColumns + ` FROM enrollment_documents WHERE id = $1 AND enrollment_id = $2 AND deleted_at IS NULL`
	if err := r.get(ctx, &doc, query, documentID, enrollmentID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocumentVerification persists verification fields.
func (r *EnrollmentRepository) UpdateDocumentVerification(ctx context.Context, doc *models.EnrollmentDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	query := `UPDATE enrollment_documents SET is_verified = :is_verified, verified_by = :verified_by, verified_at = :verified_at,
notes = :notes, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, doc); err != nil {
		return fmt.Errorf("verify enrollment document: %w", err)
	}
	return nil
}

// DeleteDocument soft deletes a document.
func (r *EnrollmentRepository) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := r.exec(ctx, `UPDATE enrollment_documents SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, documentID); err != nil {
		return fmt.Errorf("delete enrollment document: %w", err)
	}
	return nil
}
