package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/database"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestWithinTxCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	tx := NewTxManager(db)
	seq := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sequence_counters")).
		WithArgs("enrollment:2025").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))
	mock.ExpectCommit()

	var got int64
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		var err error
		got, err = seq.Next(ctx, "enrollment:2025")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	tx := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxNestedReusesOuter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	tx := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceNextIncrements(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	seq := NewSequenceRepository(db)

	for i := 1; i <= 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (key) DO UPDATE SET value = sequence_counters.value + 1")).
			WithArgs("student:2025").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(i))
	}
	first, err := seq.Next(context.Background(), "student:2025")
	require.NoError(t, err)
	second, err := seq.Next(context.Background(), "student:2025")
	require.NoError(t, err)
	assert.Greater(t, second, first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByIdentifier(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "full_name", "is_active", "email_verified",
		"must_change_password", "failed_login_attempts", "locked_until", "last_login", "created_at", "updated_at", "deleted_at"}).
		AddRow("u1", "jperez", "j@example.com", "hash", "Juan Perez", true, false, false, 0, nil, nil, now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)) AND deleted_at IS NULL")).
		WithArgs("jperez").
		WillReturnRows(rows)

	user, err := repo.FindByIdentifier(context.Background(), " jperez ")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, user.Email)
	assert.Equal(t, "j@example.com", *user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("AND r.name = $2) AND u.is_active = $3 ORDER BY u.username ASC LIMIT 20 OFFSET 0")).
		WithArgs("%ana%", models.RoleTeacher, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow("u1", "ana"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users u WHERE u.deleted_at IS NULL")).
		WithArgs("%ana%", models.RoleTeacher, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Search: "Ana", Role: models.RoleTeacher, Active: &active, SortBy: "username", SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteForUserReportsOwnership(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1 AND user_id = $2")).
		WithArgs("s1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.DeleteForUser(context.Background(), "u2", "s1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodFindOverlapping(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("start_date <= $2 AND end_date >= $1")).
		WithArgs(start, end, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code"}).AddRow("p1", "Gestion 2025", "2025"))

	periods, err := repo.FindOverlapping(context.Background(), start, end, "")
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2025", periods[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSectionRequiresTransaction(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewStructureRepository(db)

	_, err := repo.LockSection(context.Background(), "sec-1")
	require.Error(t, err)
}

func TestLockSectionUsesRowLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	tx := NewTxManager(db)
	repo := NewStructureRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = $1 AND deleted_at IS NULL FOR UPDATE")).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "grade_id", "shift_id", "name", "capacity", "classroom", "created_at", "updated_at", "deleted_at"}).
			AddRow("sec-1", "g1", "sh1", "A", 30, "101", now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND period_id = $2 AND status = 'activo'")).
		WithArgs("sec-1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(29))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		section, err := repo.LockSection(ctx, "sec-1")
		if err != nil {
			return err
		}
		count, err := repo.CountActiveEnrollments(ctx, section.ID, "p1")
		if err != nil {
			return err
		}
		assert.Less(t, count, section.Capacity)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExistsForStudentPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND period_id = $2 AND deleted_at IS NULL)")).
		WithArgs("st1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForStudentPeriod(context.Background(), "st1", "p1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentListFiltersAndPaging(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.deleted_at IS NULL AND e.period_id = $1 AND e.status = $2 ORDER BY e.created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("p1", "activo").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_number"}).AddRow("e1", "MAT-2025-0011"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("p1", "activo").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		PeriodID: "p1", Status: models.EnrollmentActive, Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "MAT-2025-0011", items[0].EnrollmentNumber)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationReserveSeatFullCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVacationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SET occupied_seats = occupied_seats + 1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ReserveSeat(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNoSeat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationReleaseSeatNeverNegative(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVacationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND occupied_seats > 0")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ReleaseSeat(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVacationSoftDeleteEnrollmentOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVacationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_enrollments SET status = $2")).
		WithArgs("v1", models.VacationCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vacation_enrollments SET status = $2")).
		WithArgs("v1", models.VacationCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SoftDeleteEnrollment(context.Background(), "v1"))
	err := repo.SoftDeleteEnrollment(context.Background(), "v1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "ux_enrollments_student_period"})

	err := repo.Create(context.Background(), &models.Enrollment{StudentID: "s1", SectionID: "sec1", PeriodID: "p1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrDuplicate)
	var dup *database.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "ux_enrollments_student_period", dup.Constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreEnrollmentReserveQuota(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPreEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND occupied_seats < total_seats RETURNING id")).
		WithArgs("p1", "g1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("q1"))
	mock.ExpectQuery(regexp.QuoteMeta("AND occupied_seats < total_seats RETURNING id")).
		WithArgs("p1", "g1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, repo.ReserveQuota(context.Background(), "p1", "g1", "s1"))
	assert.ErrorIs(t, repo.ReserveQuota(context.Background(), "p1", "g1", "s1"), ErrNoSeat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityLogCreateBypassesTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityLogRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activity_logs")).WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ActivityLog{Action: models.ActionAccessDenied, Module: models.ModuleEnrollments, Outcome: models.OutcomeFailure}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhereBuilderPlaceholders(t *testing.T) {
	w := newWhere("deleted_at IS NULL")
	w.add("status = ?", "activo")
	w.search("Ana", "first_name", "ci")
	w.add("period_id = ?", "p1")

	assert.Equal(t, " WHERE deleted_at IS NULL AND status = $1 AND (LOWER(first_name) LIKE $2 OR LOWER(ci) LIKE $2) AND period_id = $3", w.sql())
	assert.Equal(t, []interface{}{"activo", "%ana%", "p1"}, w.args)
}

func TestOrderByFallsBackOnUnknownColumn(t *testing.T) {
	allowed := map[string]string{"name": "name"}
	assert.Equal(t, " ORDER BY created_at DESC", orderBy("password_hash; DROP", "sideways", allowed, "created_at"))
	assert.Equal(t, " ORDER BY name ASC", orderBy("name", "asc", allowed, "created_at"))
}
