package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type guardianRepository interface {
	List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error)
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	FindByCI(ctx context.Context, ci string) (*models.Guardian, error)
	Create(ctx context.Context, guardian *models.Guardian) error
	Update(ctx context.Context, guardian *models.Guardian) error
	SoftDelete(ctx context.Context, id string) error
	Children(ctx context.Context, guardianID string) ([]models.StudentSummary, error)
}

// GuardianResult is a saved guardian plus the credentials of a new account.
type GuardianResult struct {
	models.Guardian
	Credentials *models.Credentials `json:"credentials,omitempty"`
}

// GuardianService manages parents and tutors.
type GuardianService struct {
	repo      guardianRepository
	accounts  accountProvisioner
	tx        txRunner
	notifier  notifier
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGuardianService constructs a GuardianService.
func NewGuardianService(repo guardianRepository, users accountRepository, tx txRunner, notify notifier, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *GuardianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &GuardianService{
		repo:      repo,
		accounts:  accountProvisioner{users: users, bcryptCost: bcryptCost},
		tx:        tx,
		notifier:  notify,
		audit:     audit,
		validator: defaultValidator(validate),
		logger:    logger,
	}
}

func (s *GuardianService) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar los tutores")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *GuardianService) Get(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "tutor no encontrado")
	}
	return guardian, nil
}

// LookupByCI finds a guardian by CI together with their children.
func (s *GuardianService) LookupByCI(ctx context.Context, ci string) (*models.ParentLookup, error) {
	ci = strings.TrimSpace(ci)
	if ci == "" {
		return nil, invalid("el CI es obligatorio")
	}
	guardian, err := s.repo.FindByCI(ctx, ci)
	if err != nil {
		return nil, lookupError(err, "no se encontró un tutor con ese CI")
	}
	children, err := s.repo.Children(ctx, guardian.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron cargar los estudiantes")
	}
	return &models.ParentLookup{Guardian: *guardian, Children: children}, nil
}

func (s *GuardianService) Create(ctx context.Context, meta models.RequestMeta, req models.GuardianRequest) (*GuardianResult, error) {
	guardian := &models.Guardian{}
	if err := s.apply(ctx, guardian, req, ""); err != nil {
		return nil, err
	}
	var creds *models.Credentials
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if req.CreateAccount {
			if creds, err = s.provision(ctx, guardian); err != nil {
				return err
			}
			guardian.UserID = &creds.UserID
		}
		if err = s.repo.Create(ctx, guardian); err != nil {
			return appErrors.Internal(err, "no se pudo registrar el tutor")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo registrar el tutor")
	}
	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(guardian.FullName(), guardian.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleGuardians, guardian.ID, "tutor registrado: "+guardian.FullName(), nil, guardian))
	return &GuardianResult{Guardian: *guardian, Credentials: creds}, nil
}

func (s *GuardianService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.GuardianRequest) (*GuardianResult, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "tutor no encontrado")
	}
	before := *guardian
	if err := s.apply(ctx, guardian, req, id); err != nil {
		return nil, err
	}
	var creds *models.Credentials
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if req.CreateAccount && guardian.UserID == nil {
			if creds, err = s.provision(ctx, guardian); err != nil {
				return err
			}
			guardian.UserID = &creds.UserID
		}
		if err = s.repo.Update(ctx, guardian); err != nil {
			return appErrors.Internal(err, "no se pudo actualizar el tutor")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo actualizar el tutor")
	}
	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(guardian.FullName(), guardian.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleGuardians, id, "tutor actualizado: "+guardian.FullName(), before, guardian))
	return &GuardianResult{Guardian: *guardian, Credentials: creds}, nil
}

// Delete soft deletes a guardian that has no linked students.
func (s *GuardianService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "tutor no encontrado")
	}
	children, err := s.repo.Children(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el tutor")
	}
	if len(children) > 0 {
		return conflict("el tutor tiene estudiantes vinculados")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el tutor")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleGuardians, id, "tutor eliminado: "+guardian.FullName(), guardian, nil))
	return nil
}

func (s *GuardianService) apply(ctx context.Context, guardian *models.Guardian, req models.GuardianRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	ci := strings.TrimSpace(req.CI)
	if ci != "" {
		existing, err := s.repo.FindByCI(ctx, ci)
		switch {
		case err == nil && existing.ID != excludeID:
			return conflict("ya existe un tutor con el CI " + ci)
		case err != nil && !isNotFound(err):
			return appErrors.Internal(err, "no se pudo verificar el CI")
		}
	}
	guardian.FirstName = strings.TrimSpace(req.FirstName)
	guardian.PaternalSurname = strings.TrimSpace(req.PaternalSurname)
	guardian.MaternalSurname = strings.TrimSpace(req.MaternalSurname)
	guardian.CI = models.StringPtr(ci)
	guardian.Phone = strings.TrimSpace(req.Phone)
	guardian.Email = strings.ToLower(strings.TrimSpace(req.Email))
	guardian.Occupation = strings.TrimSpace(req.Occupation)
	guardian.Address = strings.TrimSpace(req.Address)
	return nil
}

func (s *GuardianService) provision(ctx context.Context, g *models.Guardian) (*models.Credentials, error) {
	return s.accounts.provision(ctx, accountSpec{
		FirstName: g.FirstName,
		Surname:   firstSurname(g.PaternalSurname, g.MaternalSurname),
		FullName:  g.FullName(),
		Email:     g.Email,
		CI:        models.StringValue(g.CI),
		Role:      models.RoleParent,
	})
}
