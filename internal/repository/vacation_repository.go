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

const (
	vacationPeriodColumns = `id, name, code, start_date, end_date, enrollment_start, enrollment_end, is_active, description, created_at, updated_at, deleted_at`
	vacationCourseColumns = `id, vacation_period_id, name, description, area, instructor_name, schedule, min_age, max_age, cost, total_seats,
occupied_seats, start_date, end_date, is_active, created_at, updated_at, deleted_at`
)

const vacationEnrollmentSelect = `SELECT ve.id, ve.code, ve.vacation_course_id, ve.student_id, ve.participant_name, ve.participant_ci,
ve.participant_birth_date, ve.payer_name, ve.payer_ci, ve.payer_phone, ve.payer_email, ve.amount, ve.payment_method,
ve.payment_reference, ve.payment_verified, ve.payment_verified_by, ve.payment_verified_at, ve.status, ve.notes, ve.created_by,
ve.created_at, ve.updated_at, ve.deleted_at,
vc.name AS course_name, vc.schedule AS course_schedule, vp.code AS period_code
FROM vacation_enrollments ve
JOIN vacation_courses vc ON vc.id = ve.vacation_course_id
JOIN vacation_periods vp ON vp.id = vc.vacation_period_id`

// ErrNoSeat is returned when a conditional seat reservation matched no row.
var ErrNoSeat = errors.New("no seat available")

// VacationRepository manages vacation periods, courses and enrollments.
type VacationRepository struct {
	base
}

// NewVacationRepository creates a VacationRepository.
func NewVacationRepository(db *sqlx.DB) *VacationRepository {
	return &VacationRepository{base{db: db}}
}

func (r *VacationRepository) ListPeriods(ctx context.Context) ([]models.VacationPeriod, error) {
	var periods []models.VacationPeriod
	if err := r.selectAll(ctx, &periods, `SELECT `+vacationPeriodColumns+` FROM vacation_periods WHERE deleted_at IS NULL ORDER BY start_date DESC`); err != nil {
		return nil, fmt.Errorf("list vacation periods: %w", err)
	}
	return periods, nil
}

func (r *VacationRepository) FindPeriod(ctx context.Context, id string) (*models.VacationPeriod, error) {
	var period models.VacationPeriod
	if err := r.get(ctx, &period, `SELECT `+vacationPeriodColumns+` FROM vacation_periods WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// PeriodCodeExists reports whether another live vacation period uses code.
func (r *VacationRepository) PeriodCodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM vacation_periods WHERE LOWER(code) = LOWER($1) AND deleted_at IS NULL AND ($2 = '' OR id::text <> $2))`
	if err := r.get(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check vacation period code: %w", err)
	}
	return exists, nil
}

func (r *VacationRepository) CreatePeriod(ctx context.Context, period *models.VacationPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	stamp(&period.CreatedAt, &period.UpdatedAt)
	query := `INSERT INTO vacation_periods (id, name, code, start_date, end_date, enrollment_start, enrollment_end, is_active, description, created_at, updated_at)
VALUES (:id, :name, :code, :start_date, :end_date, :enrollment_start, :enrollment_end, :is_active, :description, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, period); err != nil {
		return fmt.Errorf("create vacation period: %w", err)
	}
	return nil
}

func (r *VacationRepository) UpdatePeriod(ctx context.Context, period *models.VacationPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	query := `UPDATE vacation_periods SET name = :name, code = :code, start_date = :start_date, end_date = :end_date,
enrollment_start = :enrollment_start, enrollment_end = :enrollment_end, is_active = :is_active, description = :description,
updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, period); err != nil {
		return fmt.Errorf("update vacation period: %w", err)
	}
	return nil
}

func (r *VacationRepository) DeletePeriod(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE vacation_periods SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete vacation period: %w", err)
	}
	return nil
}

// PeriodHasCourses reports whether live courses belong to the period.
func (r *VacationRepository) PeriodHasCourses(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM vacation_courses WHERE vacation_period_id = $1 AND deleted_at IS NULL)`, id); err != nil {
		return false, fmt.Errorf("check vacation courses: %w", err)
	}
	return exists, nil
}

func (r *VacationRepository) ListCourses(ctx context.Context, filter models.VacationCourseFilter) ([]models.VacationCourse, error) {
	where := newWhere("deleted_at IS NULL")
	if filter.VacationPeriodID != "" {
		where.add("vacation_period_id = ?", filter.VacationPeriodID)
	}
	if filter.Area != "" {
		where.add("LOWER(area) = LOWER(?)", filter.Area)
	}
	if filter.Active != nil {
		where.add("is_active = ?", *filter.Active)
	}
	where.search(filter.Search, "name", "instructor_name")
	var courses []models.VacationCourse
	if err := r.selectAll(ctx, &courses, `SELECT `+vacationCourseColumns+` FROM vacation_courses`+where.sql()+` ORDER BY name`, where.args...); err != nil {
		return nil, fmt.Errorf("list vacation courses: %w", err)
	}
	return courses, nil
}

func (r *VacationRepository) FindCourse(ctx context.Context, id string) (*models.VacationCourse, error) {
	var course models.VacationCourse
	if err := r.get(ctx, &course, `SELECT `+vacationCourseColumns+` FROM vacation_courses WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *VacationRepository) CreateCourse(ctx context.Context, course *models.VacationCourse) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	stamp(&course.CreatedAt, &course.UpdatedAt)
	query := `INSERT INTO vacation_courses (id, vacation_period_id, name, description, area, instructor_name, schedule, min_age, max_age, cost,
total_seats, occupied_seats, start_date, end_date, is_active, created_at, updated_at)
VALUES (:id, :vacation_period_id, :name, :description, :area, :instructor_name, :schedule, :min_age, :max_age, :cost,
:total_seats, :occupied_seats, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, course); err != nil {
		return fmt.Errorf("create vacation course: %w", err)
	}
	return nil
}

// UpdateCourse persists course fields. occupied_seats is owned by
// ReserveSeat and ReleaseSeat and is not written here.
func (r *VacationRepository) UpdateCourse(ctx context.Context, course *models.VacationCourse) error {
	course.UpdatedAt = time.Now().UTC()
	query := `UPDATE vacation_courses SET vacation_period_id = :vacation_period_id, name = :name, description = :description, area = :area,
instructor_name = :instructor_name, schedule = :schedule, min_age = :min_age, max_age = :max_age, cost = :cost,
total_seats = :total_seats, start_date = :start_date, end_date = :end_date, is_active = :is_active, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, course); err != nil {
		return fmt.Errorf("update vacation course: %w", err)
	}
	return nil
}

func (r *VacationRepository) DeleteCourse(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `UPDATE vacation_courses SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("delete vacation course: %w", err)
	}
	return nil
}

// ReserveSeat takes one seat only while the course has room. It returns
// ErrNoSeat when the course is full, inactive or missing.
func (r *VacationRepository) ReserveSeat(ctx context.Context, courseID string) (*models.VacationCourse, error) {
	query := `UPDATE vacation_courses SET occupied_seats = occupied_seats + 1, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL AND is_active AND occupied_seats < total_seats
RETURNING ` + vacationCourseColumns
	var course models.VacationCourse
	if err := r.get(ctx, &course, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSeat
		}
		return nil, fmt.Errorf("reserve vacation seat: %w", err)
	}
	return &course, nil
}

// ReleaseSeat gives one seat back, never going below zero.
func (r *VacationRepository) ReleaseSeat(ctx context.Context, courseID string) error {
	query := `UPDATE vacation_courses SET occupied_seats = occupied_seats - 1, updated_at = NOW() WHERE id = $1 AND occupied_seats > 0`
	if _, err := r.exec(ctx, query, courseID); err != nil {
		return fmt.Errorf("release vacation seat: %w", err)
	}
	return nil
}

func (r *VacationRepository) CreateEnrollment(ctx context.Context, enrollment *models.VacationEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.VacationEnrolled
	}
	stamp(&enrollment.CreatedAt, &enrollment.UpdatedAt)
	query := `INSERT INTO vacation_enrollments (id, code, vacation_course_id, student_id, participant_name, participant_ci, participant_birth_date,
payer_name, payer_ci, payer_phone, payer_email, amount, payment_method, payment_reference, payment_verified, status, notes, created_by, created_at, updated_at)
VALUES (:id, :code, :vacation_course_id, :student_id, :participant_name, :participant_ci, :participant_birth_date,
:payer_name, :payer_ci, :payer_phone, :payer_email, :amount, :payment_method, :payment_reference, :payment_verified, :status, :notes, :created_by, :created_at, :updated_at)`
	if err := r.namedExec(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create vacation enrollment: %w", err)
	}
	return nil
}

func (r *VacationRepository) FindEnrollment(ctx context.Context, id string) (*models.VacationEnrollmentDetail, error) {
	var detail models.VacationEnrollmentDetail
	if err := r.get(ctx, &detail, vacationEnrollmentSelect+` WHERE ve.id = $1 AND ve.deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindEnrollments returns live enrollments with the given ids, in code order.
func (r *VacationRepository) FindEnrollments(ctx context.Context, ids []string) ([]models.VacationEnrollmentDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(vacationEnrollmentSelect+` WHERE ve.id IN (?) AND ve.deleted_at IS NULL ORDER BY ve.code`, ids)
	if err != nil {
		return nil, err
	}
	var details []models.VacationEnrollmentDetail
	if err := r.selectAll(ctx, &details, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find vacation enrollments: %w", err)
	}
	return details, nil
}

func (r *VacationRepository) ListEnrollments(ctx context.Context, filter models.VacationEnrollmentFilter) ([]models.VacationEnrollmentDetail, int, error) {
	where := newWhere("ve.deleted_at IS NULL")
	if filter.VacationCourseID != "" {
		where.add("ve.vacation_course_id = ?", filter.VacationCourseID)
	}
	if filter.VacationPeriodID != "" {
		where.add("vc.vacation_period_id = ?", filter.VacationPeriodID)
	}
	if filter.PaymentVerified != nil {
		where.add("ve.payment_verified = ?", *filter.PaymentVerified)
	}
	if filter.Status != "" {
		where.add("ve.status = ?", filter.Status)
	}
	where.search(filter.Search, "ve.code", "ve.participant_name", "ve.payer_name", "ve.participant_ci", "ve.payer_ci")

	from := ` FROM vacation_enrollments ve
JOIN vacation_courses vc ON vc.id = ve.vacation_course_id
JOIN vacation_periods vp ON vp.id = vc.vacation_period_id` + where.sql()

	var enrollments []models.VacationEnrollmentDetail
	query := vacationEnrollmentSelect + where.sql() + " ORDER BY ve.created_at DESC" + limitOffset(filter.Page, filter.PageSize)
	if err := r.selectAll(ctx, &enrollments, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list vacation enrollments: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count vacation enrollments: %w", err)
	}
	return enrollments, total, nil
}

// VerifyPayment persists payment verification fields.
func (r *VacationRepository) VerifyPayment(ctx context.Context, enrollment *models.VacationEnrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	query := `UPDATE vacation_enrollments SET payment_verified = :payment_verified, payment_verified_by = :payment_verified_by,
payment_verified_at = :payment_verified_at, payment_reference = :payment_reference, payment_method = :payment_method, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if err := r.namedExec(ctx, query, enrollment); err != nil {
		return fmt.Errorf("verify vacation payment: %w", err)
	}
	return nil
}

// SoftDeleteEnrollment marks the enrollment anulled and deleted. It returns
// sql.ErrNoRows when the enrollment was already deleted.
func (r *VacationRepository) SoftDeleteEnrollment(ctx context.Context, id string) error {
	query := `UPDATE vacation_enrollments SET status = $2, deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	n, err := r.exec(ctx, query, id, models.VacationCancelled)
	if err != nil {
		return fmt.Errorf("delete vacation enrollment: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
