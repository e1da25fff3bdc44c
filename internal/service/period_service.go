package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type periodRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
	List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, int, error)
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]models.AcademicPeriod, error)
	NameOrCodeTaken(ctx context.Context, name, code, excludeID string) (nameTaken, codeTaken bool, err error)
	Create(ctx context.Context, period *models.AcademicPeriod) error
	Update(ctx context.Context, period *models.AcademicPeriod) error
	Activate(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	HasEnrollments(ctx context.Context, id string) (bool, error)
}

// PeriodService manages academic periods.
type PeriodService struct {
	repo      periodRepository
	tx        txRunner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs a PeriodService.
func NewPeriodService(repo periodRepository, tx txRunner, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &PeriodService{repo: repo, tx: tx, audit: audit, validator: defaultValidator(validate), logger: logger}
}

// List returns paginated periods.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar los periodos")
	}
	return periods, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one period.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	return period, nil
}

// Active returns the active period.
func (s *PeriodService) Active(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, lookupError(err, "no hay un periodo activo")
	}
	return period, nil
}

// Create validates dates, uniqueness and overlap then inserts the period.
func (s *PeriodService) Create(ctx context.Context, meta models.RequestMeta, req models.PeriodRequest) (*models.AcademicPeriod, error) {
	period := &models.AcademicPeriod{}
	if err := s.apply(ctx, period, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el periodo")
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModulePeriods, period.ID, "periodo creado: "+period.Code, nil, period))
	return period, nil
}

// Update replaces the editable fields of a period.
func (s *PeriodService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.PeriodRequest) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	if period.IsClosed {
		return nil, conflict("el periodo está cerrado")
	}
	before := *period
	if err := s.apply(ctx, period, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el periodo")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModulePeriods, id, "periodo actualizado: "+period.Code, before, period))
	return period, nil
}

// Activate makes id the single active period.
func (s *PeriodService) Activate(ctx context.Context, meta models.RequestMeta, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	if period.IsClosed {
		return nil, conflict("no se puede activar un periodo cerrado")
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Activate(ctx, id)
	})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo activar el periodo")
	}
	period.IsActive = true
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModulePeriods, id, "periodo activado: "+period.Code, nil, period))
	return period, nil
}

// Close marks the period closed. Closed periods accept no new enrollments.
func (s *PeriodService) Close(ctx context.Context, meta models.RequestMeta, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	if period.IsClosed {
		return nil, conflict("el periodo ya está cerrado")
	}
	before := *period
	period.IsClosed = true
	period.IsActive = false
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo cerrar el periodo")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModulePeriods, id, "periodo cerrado: "+period.Code, before, period))
	return period, nil
}

// Delete soft deletes a period without enrollments.
func (s *PeriodService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "periodo no encontrado")
	}
	used, err := s.repo.HasEnrollments(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el periodo")
	}
	if used {
		return conflict("el periodo tiene matrículas registradas")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el periodo")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModulePeriods, id, "periodo eliminado: "+period.Code, period, nil))
	return nil
}

func (s *PeriodService) apply(ctx context.Context, period *models.AcademicPeriod, req models.PeriodRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return err
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		return err
	}
	if !end.After(start) {
		return invalid("la fecha de fin debe ser posterior a la fecha de inicio")
	}

	name, code := strings.TrimSpace(req.Name), strings.ToUpper(strings.TrimSpace(req.Code))
	nameTaken, codeTaken, err := s.repo.NameOrCodeTaken(ctx, name, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el periodo")
	}
	if nameTaken {
		return conflict("ya existe un periodo con ese nombre")
	}
	if codeTaken {
		return conflict("ya existe un periodo con ese código")
	}

	overlapping, err := s.repo.FindOverlapping(ctx, start, end, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el solapamiento")
	}
	if len(overlapping) > 0 {
		return conflict("las fechas se solapan con el periodo " + overlapping[0].Name)
	}

	period.Name = name
	period.Code = code
	period.StartDate = start
	period.EndDate = end
	period.Description = strings.TrimSpace(req.Description)
	return nil
}
