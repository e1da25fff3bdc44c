package service

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type activityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, int, error)
	FindByID(ctx context.Context, id string) (*models.ActivityLog, error)
}

// ActivityService writes and reads the audit trail.
type ActivityService struct {
	repo   activityLogRepository
	logger *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo activityLogRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Record stores an entry. A failed write is logged and swallowed so the
// audited operation is never affected.
func (s *ActivityService) Record(ctx context.Context, entry models.AuditEntry) {
	log := &models.ActivityLog{
		Action:       entry.Action,
		Module:       entry.Module,
		EntityID:     models.StringPtr(entry.EntityID),
		Description:  entry.Description,
		OldData:      s.snapshot(entry.Old),
		NewData:      s.snapshot(entry.New),
		IPAddress:    entry.IP,
		UserAgent:    entry.UserAgent,
		Outcome:      entry.Outcome,
		ErrorMessage: models.StringPtr(entry.ErrorMessage),
	}
	if log.Outcome == "" {
		log.Outcome = models.OutcomeSuccess
	}
	if entry.Actor != nil && entry.Actor.UserID != "" {
		id := entry.Actor.UserID
		log.UserID = &id
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Warn("failed to write activity log",
			zap.String("module", entry.Module),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

func (s *ActivityService) snapshot(v interface{}) *types.JSONText {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to marshal audit snapshot", zap.Error(err))
		return nil
	}
	text := types.JSONText(raw)
	return &text
}

// List returns paginated entries.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar la bitácora")
	}
	return logs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one entry.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.ActivityLog, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "registro de bitácora no encontrado")
	}
	return entry, nil
}
