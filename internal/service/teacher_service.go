package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

const (
	teacherSequenceKey     = "teacher"
	duplicateAssignmentMsg = "la materia ya tiene un docente asignado en esta sección y periodo"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	CIExists(ctx context.Context, ci, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	SoftDelete(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error)
	FindAssignment(ctx context.Context, id string) (*models.TeacherAssignmentDetail, error)
	AssignmentTaken(ctx context.Context, subjectID, sectionID, periodID, excludeID string) (bool, error)
	CreateAssignment(ctx context.Context, assignment *models.TeacherAssignment) error
	UpdateAssignment(ctx context.Context, assignment *models.TeacherAssignment) error
	DeleteAssignment(ctx context.Context, id string) error
}

type assignmentLookup interface {
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
}

// TeacherResult is a saved teacher plus the credentials of a new account.
type TeacherResult struct {
	models.Teacher
	Credentials *models.Credentials `json:"credentials,omitempty"`
}

// TeacherServiceDeps groups the collaborators of TeacherService.
type TeacherServiceDeps struct {
	Teachers   teacherRepository
	Structure  assignmentLookup
	Periods    periodFinder
	Users      accountRepository
	Sequences  sequenceGenerator
	Tx         txRunner
	Storage    storage.Uploader
	Notifier   notifier
	Audit      auditRecorder
	Validator  *validator.Validate
	Logger     *zap.Logger
	BcryptCost int
}

// TeacherService manages teachers and their subject assignments.
type TeacherService struct {
	repo      teacherRepository
	structure assignmentLookup
	periods   periodFinder
	accounts  accountProvisioner
	seq       sequenceGenerator
	tx        txRunner
	store     storage.Uploader
	notifier  notifier
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(deps TeacherServiceDeps) *TeacherService {
	s := &TeacherService{
		repo:      deps.Teachers,
		structure: deps.Structure,
		periods:   deps.Periods,
		accounts:  accountProvisioner{users: deps.Users, bcryptCost: deps.BcryptCost},
		seq:       deps.Sequences,
		tx:        deps.Tx,
		store:     deps.Storage,
		notifier:  deps.Notifier,
		audit:     deps.Audit,
		validator: defaultValidator(deps.Validator),
		logger:    deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	return s
}

func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar los docentes")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "docente no encontrado")
	}
	return teacher, nil
}

// Create registers a teacher with a DOC-NNNN code.
func (s *TeacherService) Create(ctx context.Context, meta models.RequestMeta, req models.TeacherRequest) (*TeacherResult, error) {
	teacher := &models.Teacher{Status: "activo"}
	if err := s.apply(ctx, teacher, req, ""); err != nil {
		return nil, err
	}
	var creds *models.Credentials
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.seq.Next(ctx, teacherSequenceKey)
		if err != nil {
			return appErrors.Internal(err, "no se pudo generar el código del docente")
		}
		teacher.Code = sequenceCode("DOC", n)
		if req.CreateAccount {
			if creds, err = s.provision(ctx, teacher); err != nil {
				return err
			}
			teacher.UserID = &creds.UserID
		}
		if err := s.repo.Create(ctx, teacher); err != nil {
			return writeError(err, "no se pudo registrar el docente", "ya existe un docente con ese CI")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo registrar el docente")
	}
	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(teacher.FullName(), teacher.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleTeachers, teacher.ID, "docente registrado: "+teacher.Code, nil, teacher))
	return &TeacherResult{Teacher: *teacher, Credentials: creds}, nil
}

func (s *TeacherService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.TeacherRequest) (*TeacherResult, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "docente no encontrado")
	}
	before := *teacher
	if err := s.apply(ctx, teacher, req, id); err != nil {
		return nil, err
	}
	var creds *models.Credentials
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if req.CreateAccount && teacher.UserID == nil {
			if creds, err = s.provision(ctx, teacher); err != nil {
				return err
			}
			teacher.UserID = &creds.UserID
		}
		if err = s.repo.Update(ctx, teacher); err != nil {
			return appErrors.Internal(err, "no se pudo actualizar el docente")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo actualizar el docente")
	}
	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(teacher.FullName(), teacher.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleTeachers, id, "docente actualizado: "+teacher.Code, before, teacher))
	return &TeacherResult{Teacher: *teacher, Credentials: creds}, nil
}

// Delete soft deletes a teacher together with their assignments.
func (s *TeacherService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "docente no encontrado")
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.SoftDelete(ctx, id)
	})
	if err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el docente")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleTeachers, id, "docente eliminado: "+teacher.Code, teacher, nil))
	return nil
}

// UploadPhoto resizes and stores a teacher photo.
func (s *TeacherService) UploadPhoto(ctx context.Context, meta models.RequestMeta, id string, file models.UploadedFile) (*models.Teacher, error) {
	return s.attachFile(ctx, meta, id, func(batch *uploadBatch, teacher *models.Teacher) error {
		obj, err := batch.putPhoto(ctx, teacher.ID, file)
		if err != nil {
			return err
		}
		teacher.PhotoURL = &obj.URL
		return nil
	}, "foto actualizada")
}

// UploadCV stores a teacher curriculum document.
func (s *TeacherService) UploadCV(ctx context.Context, meta models.RequestMeta, id string, file models.UploadedFile) (*models.Teacher, error) {
	return s.attachFile(ctx, meta, id, func(batch *uploadBatch, teacher *models.Teacher) error {
		obj, err := batch.put(ctx, teacher.ID+"/cv", file)
		if err != nil {
			return err
		}
		teacher.CVURL = &obj.URL
		return nil
	}, "CV actualizado")
}

func (s *TeacherService) attachFile(ctx context.Context, meta models.RequestMeta, id string, store func(*uploadBatch, *models.Teacher) error, description string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "docente no encontrado")
	}
	before := *teacher
	batch := newUploadBatch(s.store, "teachers", s.logger)
	if err := store(batch, teacher); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, teacher); err != nil {
		batch.discard(ctx)
		return nil, appErrors.Internal(err, "no se pudo guardar el archivo del docente")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpload, models.ModuleTeachers, id, description+": "+teacher.Code, before, teacher))
	return teacher, nil
}

// ListAssignments returns assignments matching filter.
func (s *TeacherService) ListAssignments(ctx context.Context, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	items, err := s.repo.ListAssignments(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar las asignaciones")
	}
	return items, nil
}

// CreateAssignment binds a teacher to a subject in a section for a period.
func (s *TeacherService) CreateAssignment(ctx context.Context, meta models.RequestMeta, req models.TeacherAssignmentRequest) (*models.TeacherAssignmentDetail, error) {
	assignment := &models.TeacherAssignment{}
	if err := s.applyAssignment(ctx, assignment, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, writeError(err, "no se pudo crear la asignación", duplicateAssignmentMsg)
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleTeachers, assignment.ID, "asignación creada", nil, assignment))
	return s.assignment(ctx, assignment.ID)
}

func (s *TeacherService) UpdateAssignment(ctx context.Context, meta models.RequestMeta, id string, req models.TeacherAssignmentRequest) (*models.TeacherAssignmentDetail, error) {
	current, err := s.assignment(ctx, id)
	if err != nil {
		return nil, err
	}
	assignment := current.TeacherAssignment
	if err := s.applyAssignment(ctx, &assignment, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAssignment(ctx, &assignment); err != nil {
		return nil, writeError(err, "no se pudo actualizar la asignación", duplicateAssignmentMsg)
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleTeachers, id, "asignación actualizada", current.TeacherAssignment, assignment))
	return s.assignment(ctx, id)
}

func (s *TeacherService) DeleteAssignment(ctx context.Context, meta models.RequestMeta, id string) error {
	current, err := s.assignment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAssignment(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar la asignación")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleTeachers, id, "asignación eliminada", current.TeacherAssignment, nil))
	return nil
}

func (s *TeacherService) assignment(ctx context.Context, id string) (*models.TeacherAssignmentDetail, error) {
	a, err := s.repo.FindAssignment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "asignación no encontrada")
	}
	return a, nil
}

func (s *TeacherService) applyAssignment(ctx context.Context, a *models.TeacherAssignment, req models.TeacherAssignmentRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, req.TeacherID); err != nil {
		return lookupError(err, "docente no encontrado")
	}
	if _, err := s.structure.FindSubject(ctx, req.SubjectID); err != nil {
		return lookupError(err, "materia no encontrada")
	}
	section, err := s.structure.FindSection(ctx, req.SectionID)
	if err != nil {
		return lookupError(err, "sección no encontrada")
	}
	if _, err := s.periods.FindByID(ctx, req.PeriodID); err != nil {
		return lookupError(err, "periodo no encontrado")
	}
	taken, err := s.repo.AssignmentTaken(ctx, req.SubjectID, req.SectionID, req.PeriodID, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar la asignación")
	}
	if taken {
		return conflict(duplicateAssignmentMsg)
	}
	a.TeacherID = req.TeacherID
	a.SubjectID = req.SubjectID
	a.SectionID = req.SectionID
	a.GradeID = section.GradeID
	a.PeriodID = req.PeriodID
	a.WeeklyHours = req.WeeklyHours
	return nil
}

func (s *TeacherService) apply(ctx context.Context, teacher *models.Teacher, req models.TeacherRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	birth, err := parseOptionalDate(req.BirthDate, "birth_date")
	if err != nil {
		return err
	}
	hired, err := parseOptionalDate(req.HireDate, "hire_date")
	if err != nil {
		return err
	}
	ci := strings.TrimSpace(req.CI)
	exists, err := s.repo.CIExists(ctx, ci, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el CI")
	}
	if exists {
		return conflict("ya existe un docente con el CI " + ci)
	}
	teacher.FirstName = strings.TrimSpace(req.FirstName)
	teacher.PaternalSurname = strings.TrimSpace(req.PaternalSurname)
	teacher.MaternalSurname = strings.TrimSpace(req.MaternalSurname)
	teacher.CI = ci
	teacher.BirthDate = birth
	teacher.Gender = req.Gender
	teacher.Specialty = strings.TrimSpace(req.Specialty)
	teacher.Degree = strings.TrimSpace(req.Degree)
	teacher.HireDate = hired
	teacher.Phone = strings.TrimSpace(req.Phone)
	teacher.Email = strings.ToLower(strings.TrimSpace(req.Email))
	teacher.Address = strings.TrimSpace(req.Address)
	if req.Status != "" {
		teacher.Status = req.Status
	}
	return nil
}

func (s *TeacherService) provision(ctx context.Context, t *models.Teacher) (*models.Credentials, error) {
	return s.accounts.provision(ctx, accountSpec{
		FirstName: t.FirstName,
		Surname:   firstSurname(t.PaternalSurname, t.MaternalSurname),
		FullName:  t.FullName(),
		Email:     t.Email,
		CI:        t.CI,
		Role:      models.RoleTeacher,
	})
}
