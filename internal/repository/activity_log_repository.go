package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// ActivityLogRepository stores the append-only audit trail.
type ActivityLogRepository struct {
	base
}

// NewActivityLogRepository creates an ActivityLogRepository.
func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{base{db: db}}
}

// Create appends an entry. It always runs on the pool, never on an ambient
// transaction, so denied or failed operations still leave a trace.
func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO activity_logs (id, user_id, action, module, entity_id, description, old_data, new_data, ip_address, user_agent, outcome, error_message, created_at)
VALUES (:id, :user_id, :action, :module, :entity_id, :description, :old_data, :new_data, :ip_address, :user_agent, :outcome, :error_message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// List returns log entries newest first.
func (r *ActivityLogRepository) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error) {
	where := newWhere()
	if filter.UserID != "" {
		where.add("a.user_id = ?", filter.UserID)
	}
	if filter.Module != "" {
		where.add("a.module = ?", filter.Module)
	}
	if filter.Action != "" {
		where.add("a.action = ?", filter.Action)
	}
	if filter.Outcome != "" {
		where.add("a.outcome = ?", filter.Outcome)
	}
	if filter.From != nil {
		where.add("a.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		where.add("a.created_at < ?", *filter.To)
	}

	from := " FROM activity_logs a LEFT JOIN users u ON u.id = a.user_id" + where.sql()
	query := `SELECT a.id, a.user_id, u.username, a.action, a.module, a.entity_id, a.description, a.old_data, a.new_data,
a.ip_address, a.user_agent, a.outcome, a.error_message, a.created_at` + from + " ORDER BY a.created_at DESC" + limitOffset(filter.Page, filter.PageSize)

	var logs []models.ActivityLog
	if err := r.selectAll(ctx, &logs, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, "SELECT COUNT(*)"+from, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}
	return logs, total, nil
}

// FindByID returns a single entry.
func (r *ActivityLogRepository) FindByID(ctx context.Context, id string) (*models.ActivityLog, error) {
	var entry models.ActivityLog
	query := `SELECT a.id, a.user_id, u.username, a.action, a.module, a.entity_id, a.description, a.old_data, a.new_data,
a.ip_address, a.user_agent, a.outcome, a.error_message, a.created_at FROM activity_logs a LEFT JOIN users u ON u.id = a.user_id WHERE a.id = $1`
	if err := r.get(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}
