package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const teacherColumns = `id, code, first_name, paternal_surname, maternal_surname, ci, birth_date, gender, specialty, degree, hire_date,
phone, email, address, user_id, photo_url, cv_url, status, created_at, updated_at, deleted_at`

// TeacherRepository provides access to teachers and their assignments.
type TeacherRepository struct {
	base
}

// NewTeacherRepository creates a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{base{db: db}}
}

// List returns teachers filtered by the provided criteria.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	where := newWhere("deleted_at IS NULL")
	where.search(filter.Search, "code", "first_name", "paternal_surname", "maternal_surname", "ci")
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.Specialty != "" {
		where.add("LOWER(specialty) = LOWER(?)", filter.Specialty)
	}
	allowedSorts := map[string]string{
		"code":       "code",
		"first_name": "first_name",
		"surname":    "paternal_surname",
		"hire_date":  "hire_date",
		"created_at": "created_at",
	}
	from := " FROM teachers" + where.sql()
	query := "SELECT " + teacherColumns + from + orderBy(filter.SortBy, filter.SortOrder, allowedSorts, "paternal_surname") + limitOffset(filter.Page, filter.PageSize)

	var teachers []models.Teacher
	if err := r.selectAll(ctx, &teachers, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a live teacher.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.get(ctx, &teacher, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// CIExists reports whether another live teacher uses ci.
func (r *TeacherRepository) CIExists(ctx context.Context, ci, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM teachers WHERE ci = $1 AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, ci, excludeID); err != nil {
		return false, fmt.Errorf("check teacher ci: %w", err)
	}
	return exists, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if teacher.Status == "" {
		teacher.Status = "activo"
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	query := `INSERT INTO teachers (id, code, first_name, paternal_surname, maternal_surname, ci, birth_date, gender, specialty, degree, hire_date,
phone, email, address, user_id, photo_url, cv_url, status, created_at, updated_at)
VALUES (:id, :code, :first_name, :paternal_surname, :maternal_surname, :ci, :birth_date, :gender, :specialty, :degree, :hire_date,
:phone, :email, :address, :user_id, :photo_url, :cv_url, :status, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update persists editable fields.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	query := `UPDATE teachers SET first_name = :first_name, paternal_surname = :paternal_surname, maternal_surname = :maternal_surname,
ci = :ci, birth_date = :birth_date, gender = :gender, specialty = :specialty, degree = :degree, hire_date = :hire_date,
phone = :phone, email = :email, address = :address, user_id = :user_id, photo_url = :photo_url, cv_url = :cv_url,
status = :status, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// SoftDelete marks the teacher and its assignments deleted.
func (r *TeacherRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE teacher_assignments SET deleted_at = NOW(), updated_at = NOW() WHERE teacher_id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete teacher assignments: %w", err)
	}
	if _, err := r.exec(ctx, `UPDATE teachers SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return nil
}

const assignmentDetailSelect = `SELECT ta.id, ta.teacher_id, ta.grade_id, ta.subject_id, ta.section_id, ta.period_id, ta.weekly_hours,
ta.created_at, ta.updated_at, ta.deleted_at,
TRIM(t.first_name || ' ' || t.paternal_surname || ' ' || t.maternal_surname) AS teacher_name,
sub.name AS subject_name, sec.name AS section_name, g.name AS grade_name, p.code AS period_code
FROM teacher_assignments ta
JOIN teachers t ON t.id = ta.teacher_id
JOIN subjects sub ON sub.id = ta.subject_id
JOIN sections sec ON sec.id = ta.section_id
JOIN grades g ON g.id = ta.grade_id
JOIN academic_periods p ON p.id = ta.period_id`

// ListAssignments returns live assignments matching the filter.
func (r *TeacherRepository) ListAssignments(ctx context.Context, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	where := newWhere("ta.deleted_at IS NULL")
	if filter.TeacherID != "" {
		where.add("ta.teacher_id = ?", filter.TeacherID)
	}
	if filter.SectionID != "" {
		where.add("ta.section_id = ?", filter.SectionID)
	}
	if filter.PeriodID != "" {
		where.add("ta.period_id = ?", filter.PeriodID)
	}
	if filter.SubjectID != "" {
		where.add("ta.subject_id = ?", filter.SubjectID)
	}
	var assignments []models.TeacherAssignmentDetail
	if err := r.selectAll(ctx, &assignments, assignmentDetailSelect+where.sql()+" ORDER BY g.sort_order, sec.name, sub.name", where.args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindAssignment returns a live assignment.
func (r *TeacherRepository) FindAssignment(ctx context.Context, id string) (*models.TeacherAssignmentDetail, error) {
	var assignment models.TeacherAssignmentDetail
	if err := r.get(ctx, &assignment, assignmentDetailSelect+" WHERE ta.id = $1 AND ta.deleted_at IS NULL", id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// AssignmentTaken reports whether the subject already has a teacher in the section and period.
func (r *TeacherRepository) AssignmentTaken(ctx context.Context, subjectID, sectionID, periodID, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM teacher_assignments WHERE subject_id = $1 AND section_id = $2 AND period_id = $3
AND deleted_at IS NULL AND ($4 = '' OR id::text <> $4))`
	if err := r.get(ctx, &exists, query, subjectID, sectionID, periodID, excludeID); err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return exists, nil
}

// CreateAssignment inserts an assignment.
func (r *TeacherRepository) CreateAssignment(ctx context.Context, assignment *models.TeacherAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	query := `INSERT INTO teacher_assignments (id, teacher_id, grade_id, subject_id, section_id, period_id, weekly_hours, created_at, updated_at)
VALUES (:id, :teacher_id, :grade_id, :subject_id, :section_id, :period_id, :weekly_hours, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpdateAssignment persists an assignment.
func (r *TeacherRepository) UpdateAssignment(ctx context.Context, assignment *models.TeacherAssignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	query := `UPDATE teacher_assignments SET teacher_id = :teacher_id, grade_id = :grade_id, subject_id = :subject_id, section_id = :section_id,
period_id = :period_id, weekly_hours = :weekly_hours, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// DeleteAssignment soft deletes an assignment.
func (r *TeacherRepository) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE teacher_assignments SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
