package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const studentColumns = `id, code, first_name, paternal_surname, maternal_surname, ci, birth_date, gender, address, phone, email,
user_id, photo_url, status, created_at, updated_at, deleted_at`

// StudentRepository provides access to student records.
type StudentRepository struct {
	base
}

// NewStudentRepository creates a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{base{db: db}}
}

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := newWhere("deleted_at IS NULL")
	where.search(filter.Search, "code", "first_name", "paternal_surname", "maternal_surname", "COALESCE(ci, '')")
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	allowedSorts := map[string]string{
		"code":       "code",
		"first_name": "first_name",
		"surname":    "paternal_surname",
		"created_at": "created_at",
	}
	from := " FROM students" + where.sql()
	query := "SELECT " + studentColumns + from + orderBy(filter.SortBy, filter.SortOrder, allowedSorts, "paternal_surname") + limitOffset(filter.Page, filter.PageSize)

	var students []models.Student
	if err := r.selectAll(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a live student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.get(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student linked to an account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	if err := r.get(ctx, &student, `SELECT `+studentColumns+` FROM students WHERE user_id = $1 AND deleted_at IS NULL`, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// CIExists reports whether another live student uses ci.
func (r *StudentRepository) CIExists(ctx context.Context, ci, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM students WHERE ci = $1 AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, ci, excludeID); err != nil {
		return false, fmt.Errorf("check student ci: %w", err)
	}
	return exists, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	query := `INSERT INTO students (id, code, first_name, paternal_surname, maternal_surname, ci, birth_date, gender, address, phone, email, user_id, photo_url, status, created_at, updated_at)
VALUES (:id, :code, :first_name, :paternal_surname, :maternal_surname, :ci, :birth_date, :gender, :address, :phone, :email, :user_id, :photo_url, :status, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists editable fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET first_name = :first_name, paternal_surname = :paternal_surname, maternal_surname = :maternal_surname,
ci = :ci, birth_date = :birth_date, gender = :gender, address = :address, phone = :phone, email = :email, user_id = :user_id,
photo_url = :photo_url, status = :status, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SoftDelete marks the student deleted.
func (r *StudentRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE students SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// Guardians returns the live guardian links of a student.
func (r *StudentRepository) Guardians(ctx context.Context, studentID string) ([]models.StudentGuardianDetail, error) {
	query := `SELECT sg.id, sg.student_id, sg.guardian_id, sg.relationship, sg.is_primary, sg.can_pick_up, sg.receives_notifications,
sg.contact_priority, sg.created_at, sg.updated_at, sg.deleted_at,
TRIM(g.first_name || ' ' || g.paternal_surname || ' ' || g.maternal_surname) AS guardian_name,
g.ci AS guardian_ci, g.phone AS guardian_phone, g.email AS guardian_email
FROM student_guardians sg JOIN guardians g ON g.id = sg.guardian_id AND g.deleted_at IS NULL
WHERE sg.student_id = $1 AND sg.deleted_at IS NULL
ORDER BY sg.is_primary DESC, sg.contact_priority`
	var links []models.StudentGuardianDetail
	if err := r.selectAll(ctx, &links, query, studentID); err != nil {
		return nil, fmt.Errorf("student guardians: %w", err)
	}
	return links, nil
}

// LinkGuardian inserts or revives a student-guardian link.
func (r *StudentRepository) LinkGuardian(ctx context.Context, link *models.StudentGuardian) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	if link.IsPrimary {
		if _, err := r.exec(ctx, `UPDATE student_guardians SET is_primary = FALSE, updated_at = NOW() WHERE student_id = $1 AND deleted_at IS NULL`, link.StudentID); err != nil {
			return fmt.Errorf("clear primary guardian: %w", err)
		}
	}
	query := `INSERT INTO student_guardians (id, student_id, guardian_id, relationship, is_primary, can_pick_up, receives_notifications, contact_priority, created_at, updated_at)
VALUES (:id, :student_id, :guardian_id, :relationship, :is_primary, :can_pick_up, :receives_notifications, :contact_priority, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, link); err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}
	return nil
}

// GuardianLinked reports whether a live link exists.
func (r *StudentRepository) GuardianLinked(ctx context.Context, studentID, guardianID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM student_guardians WHERE student_id = $1 AND guardian_id = $2 AND deleted_at IS NULL)`
	if err := r.get(ctx, &exists, query, studentID, guardianID); err != nil {
		return false, fmt.Errorf("check guardian link: %w", err)
	}
	return exists, nil
}

// UnlinkGuardian soft deletes a link. It reports whether a row was affected.
func (r *StudentRepository) UnlinkGuardian(ctx context.Context, studentID, guardianID string) (bool, error) {
	affected, err := r.exec(ctx, `UPDATE student_guardians SET deleted_at = NOW(), updated_at = NOW() WHERE student_id = $1 AND guardian_id = $2 AND deleted_at IS NULL`, studentID, guardianID)
	if err != nil {
		return false, fmt.Errorf("unlink guardian: %w", err)
	}
	return affected > 0, nil
}
