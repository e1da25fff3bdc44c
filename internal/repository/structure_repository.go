package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// StructureRepository covers levels, grades, shifts, sections and subjects.
type StructureRepository struct {
	base
}

// NewStructureRepository creates a StructureRepository.
func NewStructureRepository(db *sqlx.DB) *StructureRepository {
	return &StructureRepository{base{db: db}}
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	*created = now
	*updated = now
}

// Levels

func (r *StructureRepository) ListLevels(ctx context.Context) ([]models.Level, error) {
	var levels []models.Level
	query := `SELECT id, name, code, sort_order, created_at, updated_at, deleted_at FROM levels WHERE deleted_at IS NULL ORDER BY sort_order, name`
	if err := r.selectAll(ctx, &levels, query); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

func (r *StructureRepository) FindLevel(ctx context.Context, id string) (*models.Level, error) {
	var level models.Level
	query := `SELECT id, name, code, sort_order, created_at, updated_at, deleted_at FROM levels WHERE id = $1 AND deleted_at IS NULL`
	if err := r.get(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

func (r *StructureRepository) CreateLevel(ctx context.Context, level *models.Level) error {
	if level.ID == "" {
		level.ID = uuid.NewString()
	}
	stamp(&level.CreatedAt, &level.UpdatedAt)
	query := `INSERT INTO levels (id, name, code, sort_order, created_at, updated_at) VALUES (:id, :name, :code, :sort_order, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, level); err != nil {
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

func (r *StructureRepository) UpdateLevel(ctx context.Context, level *models.Level) error {
	level.UpdatedAt = time.Now().UTC()
	query := `UPDATE levels SET name = :name, code = :code, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, level); err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return nil
}

func (r *StructureRepository) DeleteLevel(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE levels SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete level: %w", err)
	}
	return nil
}

// Grades

const gradeSelect = `SELECT g.id, g.level_id, l.name AS level_name, g.name, g.sort_order, g.created_at, g.updated_at, g.deleted_at
FROM grades g JOIN levels l ON l.id = g.level_id`

func (r *StructureRepository) ListGrades(ctx context.Context, levelID string) ([]models.Grade, error) {
	where := newWhere("g.deleted_at IS NULL")
	if levelID != "" {
		where.add("g.level_id = ?", levelID)
	}
	var grades []models.Grade
	if err := r.selectAll(ctx, &grades, gradeSelect+where.sql()+" ORDER BY l.sort_order, g.sort_order, g.name", where.args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

func (r *StructureRepository) FindGrade(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := r.get(ctx, &grade, gradeSelect+` WHERE g.id = $1 AND g.deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

func (r *StructureRepository) CreateGrade(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	stamp(&grade.CreatedAt, &grade.UpdatedAt)
	query := `INSERT INTO grades (id, level_id, name, sort_order, created_at, updated_at) VALUES (:id, :level_id, :name, :sort_order, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

func (r *StructureRepository) UpdateGrade(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	query := `UPDATE grades SET level_id = :level_id, name = :name, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

func (r *StructureRepository) DeleteGrade(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE grades SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}

// Shifts

func (r *StructureRepository) ListShifts(ctx context.Context) ([]models.Shift, error) {
	var shifts []models.Shift
	query := `SELECT id, name, start_time, end_time, created_at, updated_at, deleted_at FROM shifts WHERE deleted_at IS NULL ORDER BY start_time, name`
	if err := r.selectAll(ctx, &shifts, query); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

func (r *StructureRepository) FindShift(ctx context.Context, id string) (*models.Shift, error) {
	var shift models.Shift
	query := `SELECT id, name, start_time, end_time, created_at, updated_at, deleted_at FROM shifts WHERE id = $1 AND deleted_at IS NULL`
	if err := r.get(ctx, &shift, query, id); err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *StructureRepository) CreateShift(ctx context.Context, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	stamp(&shift.CreatedAt, &shift.UpdatedAt)
	query := `INSERT INTO shifts (id, name, start_time, end_time, created_at, updated_at) VALUES (:id, :name, :start_time, :end_time, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, shift); err != nil {
		return fmt.Errorf("create shift: %w", err)
	}
	return nil
}

func (r *StructureRepository) UpdateShift(ctx context.Context, shift *models.Shift) error {
	shift.UpdatedAt = time.Now().UTC()
	query := `UPDATE shifts SET name = :name, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, shift); err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	return nil
}

func (r *StructureRepository) DeleteShift(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE shifts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	return nil
}

// Sections

const sectionColumns = `id, grade_id, shift_id, name, capacity, classroom, created_at, updated_at, deleted_at`

// ListSections returns sections with occupancy counted for filter.PeriodID.
func (r *StructureRepository) ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, error) {
	where := newWhere("s.deleted_at IS NULL")
	if filter.GradeID != "" {
		where.add("s.grade_id = ?", filter.GradeID)
	}
	if filter.ShiftID != "" {
		where.add("s.shift_id = ?", filter.ShiftID)
	}
	where.args = append(where.args, filter.PeriodID)
	periodPH := fmt.Sprintf("$%d", len(where.args))

	query := `SELECT s.id, s.grade_id, s.shift_id, s.name, s.capacity, s.classroom, s.created_at, s.updated_at, s.deleted_at,
g.name AS grade_name, l.name AS level_name, sh.name AS shift_name,
(SELECT COUNT(*) FROM enrollments e WHERE e.section_id = s.id AND e.status = 'activo' AND e.deleted_at IS NULL
 AND (` + periodPH + ` = '' OR e.period_id::text = ` + periodPH + `)) AS occupied
FROM sections s
JOIN grades g ON g.id = s.grade_id
JOIN levels l ON l.id = g.level_id
JOIN shifts sh ON sh.id = s.shift_id` + where.sql() + ` ORDER BY l.sort_order, g.sort_order, s.name`

	var sections []models.SectionDetail
	if err := r.selectAll(ctx, &sections, query, where.args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for i := range sections {
		sections[i].Available = sections[i].Capacity - sections[i].Occupied
		if sections[i].Available < 0 {
			sections[i].Available = 0
		}
	}
	return sections, nil
}

func (r *StructureRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	var section models.Section
	if err := r.get(ctx, &section, `SELECT `+sectionColumns+` FROM sections WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// LockSection reads the section with a row lock held until the transaction
// ends. Must be called inside TxManager.WithinTx.
func (r *StructureRepository) LockSection(ctx context.Context, id string) (*models.Section, error) {
	if !InTx(ctx) {
		return nil, fmt.Errorf("lock section: no transaction in context")
	}
	var section models.Section
	if err := r.get(ctx, &section, `SELECT `+sectionColumns+` FROM sections WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountActiveEnrollments counts active, live enrollments of a section in a period.
func (r *StructureRepository) CountActiveEnrollments(ctx context.Context, sectionID, periodID string) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND period_id = $2 AND status = 'activo' AND deleted_at IS NULL`
	if err := r.get(ctx, &total, query, sectionID, periodID); err != nil {
		return 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return total, nil
}

func (r *StructureRepository) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	stamp(&section.CreatedAt, &section.UpdatedAt)
	query := `INSERT INTO sections (id, grade_id, shift_id, name, capacity, classroom, created_at, updated_at)
VALUES (:id, :grade_id, :shift_id, :name, :capacity, :classroom, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

func (r *StructureRepository) UpdateSection(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	query := `UPDATE sections SET grade_id = :grade_id, shift_id = :shift_id, name = :name, capacity = :capacity, classroom = :classroom, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

func (r *StructureRepository) DeleteSection(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE sections SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// MaxActiveEnrollments returns the largest active headcount of the section in any period.
func (r *StructureRepository) MaxActiveEnrollments(ctx context.Context, sectionID string) (int, error) {
	var max int
	query := `SELECT COALESCE(MAX(c), 0) FROM (SELECT COUNT(*) AS c FROM enrollments WHERE section_id = $1 AND status = 'activo' AND deleted_at IS NULL GROUP BY period_id) t`
	if err := r.get(ctx, &max, query, sectionID); err != nil {
		return 0, fmt.Errorf("section headcount: %w", err)
	}
	return max, nil
}

// Subjects

const subjectColumns = `id, code, name, level_id, created_at, updated_at, deleted_at`

func (r *StructureRepository) ListSubjects(ctx context.Context, levelID string) ([]models.Subject, error) {
	where := newWhere("deleted_at IS NULL")
	if levelID != "" {
		where.add("level_id = ?", levelID)
	}
	var subjects []models.Subject
	if err := r.selectAll(ctx, &subjects, `SELECT `+subjectColumns+` FROM subjects`+where.sql()+` ORDER BY name`, where.args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

func (r *StructureRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.get(ctx, &subject, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// SubjectCodeExists reports whether another live subject uses code.
func (r *StructureRepository) SubjectCodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM subjects WHERE LOWER(code) = LOWER($1) AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return exists, nil
}

func (r *StructureRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	stamp(&subject.CreatedAt, &subject.UpdatedAt)
	query := `INSERT INTO subjects (id, code, name, level_id, created_at, updated_at) VALUES (:id, :code, :name, :level_id, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (r *StructureRepository) UpdateSubject(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	query := `UPDATE subjects SET code = :code, name = :name, level_id = :level_id, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

func (r *StructureRepository) DeleteSubject(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE subjects SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
