package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	CIExists(ctx context.Context, ci, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, id string) error
	Guardians(ctx context.Context, studentID string) ([]models.StudentGuardianDetail, error)
	LinkGuardian(ctx context.Context, link *models.StudentGuardian) error
	GuardianLinked(ctx context.Context, studentID, guardianID string) (bool, error)
	UnlinkGuardian(ctx context.Context, studentID, guardianID string) (bool, error)
}

type guardianFinder interface {
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
}

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// StudentResult is a created student plus the credentials of its new account.
type StudentResult struct {
	models.Student
	Credentials *models.Credentials `json:"credentials,omitempty"`
}

// StudentService manages student records and guardian links.
type StudentService struct {
	repo        studentRepository
	guardians   guardianFinder
	enrollments enrollmentLister
	accounts    accountProvisioner
	seq         sequenceGenerator
	tx          txRunner
	store       storage.Uploader
	notifier    notifier
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// StudentServiceDeps groups the collaborators of StudentService.
type StudentServiceDeps struct {
	Students    studentRepository
	Guardians   guardianFinder
	Enrollments enrollmentLister
	Users       accountRepository
	Sequences   sequenceGenerator
	Tx          txRunner
	Storage     storage.Uploader
	Notifier    notifier
	Audit       auditRecorder
	Validator   *validator.Validate
	Logger      *zap.Logger
	BcryptCost  int
}

// NewStudentService constructs a StudentService.
func NewStudentService(deps StudentServiceDeps) *StudentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StudentService{
		repo:        deps.Students,
		guardians:   deps.Guardians,
		enrollments: deps.Enrollments,
		accounts:    accountProvisioner{users: deps.Users, bcryptCost: deps.BcryptCost},
		seq:         deps.Sequences,
		tx:          deps.Tx,
		store:       deps.Storage,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		validator:   defaultValidator(deps.Validator),
		logger:      logger,
		now:         time.Now,
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	return s
}

// nextStudentCode allocates EST-<year>-NNNN. Must run inside a transaction.
func nextStudentCode(ctx context.Context, seq sequenceGenerator, now time.Time) (string, error) {
	year := now.Year()
	n, err := seq.Next(ctx, fmt.Sprintf("student:%d", year))
	if err != nil {
		return "", appErrors.Internal(err, "no se pudo generar el código del estudiante")
	}
	return sequenceCode(fmt.Sprintf("EST-%d", year), n), nil
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar los estudiantes")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student with linked guardians.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "estudiante no encontrado")
	}
	guardians, err := s.repo.Guardians(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron cargar los tutores")
	}
	return &models.StudentDetail{Student: *student, Guardians: guardians}, nil
}

// Create registers a student, optionally with a login account.
func (s *StudentService) Create(ctx context.Context, meta models.RequestMeta, req models.StudentRequest) (*StudentResult, error) {
	student := &models.Student{}
	if err := s.apply(ctx, student, req, ""); err != nil {
		return nil, err
	}

	var creds *models.Credentials
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		code, err := nextStudentCode(ctx, s.seq, s.now())
		if err != nil {
			return err
		}
		student.Code = code
		if req.CreateAccount {
			if creds, err = s.provision(ctx, student); err != nil {
				return err
			}
			student.UserID = &creds.UserID
		}
		if err := s.repo.Create(ctx, student); err != nil {
			return writeError(err, "no se pudo registrar el estudiante", "ya existe un estudiante con ese CI o código")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo registrar el estudiante")
	}

	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(student.FullName(), student.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleStudents, student.ID, "estudiante registrado: "+student.Code, nil, student))
	return &StudentResult{Student: *student, Credentials: creds}, nil
}

// Update edits a student. CreateAccount provisions a login when none exists.
func (s *StudentService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.StudentRequest) (*StudentResult, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "estudiante no encontrado")
	}
	before := *student
	if err := s.apply(ctx, student, req, id); err != nil {
		return nil, err
	}

	var creds *models.Credentials
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if req.CreateAccount && student.UserID == nil {
			if creds, err = s.provision(ctx, student); err != nil {
				return err
			}
			student.UserID = &creds.UserID
		}
		if err := s.repo.Update(ctx, student); err != nil {
			return appErrors.Internal(err, "no se pudo actualizar el estudiante")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo actualizar el estudiante")
	}

	if creds != nil {
		s.notifier.Notify(ctx, welcomeMessage(student.FullName(), student.Email, creds))
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleStudents, id, "estudiante actualizado: "+student.Code, before, student))
	return &StudentResult{Student: *student, Credentials: creds}, nil
}

// Delete soft deletes a student without active enrollments.
func (s *StudentService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "estudiante no encontrado")
	}
	_, active, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: id, Status: models.EnrollmentActive, Page: 1, PageSize: 1})
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar las matrículas")
	}
	if active > 0 {
		return conflict("el estudiante tiene matrículas activas")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el estudiante")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleStudents, id, "estudiante eliminado: "+student.Code, student, nil))
	return nil
}

// UploadPhoto resizes and stores a student photo.
func (s *StudentService) UploadPhoto(ctx context.Context, meta models.RequestMeta, id string, file models.UploadedFile) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "estudiante no encontrado")
	}
	batch := newUploadBatch(s.store, "students", s.logger)
	obj, err := batch.putPhoto(ctx, student.ID, file)
	if err != nil {
		return nil, err
	}
	before := *student
	student.PhotoURL = &obj.URL
	if err := s.repo.Update(ctx, student); err != nil {
		batch.discard(ctx)
		return nil, appErrors.Internal(err, "no se pudo guardar la foto")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpload, models.ModuleStudents, id, "foto actualizada: "+student.Code, before.PhotoURL, student.PhotoURL))
	return student, nil
}

// LinkGuardian links an existing guardian to a student.
func (s *StudentService) LinkGuardian(ctx context.Context, meta models.RequestMeta, studentID string, req models.LinkGuardianRequest) (*models.StudentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "estudiante no encontrado")
	}
	if _, err := s.guardians.FindByID(ctx, req.GuardianID); err != nil {
		return nil, lookupError(err, "tutor no encontrado")
	}
	linked, err := s.repo.GuardianLinked(ctx, studentID, req.GuardianID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar el vínculo")
	}
	if linked {
		return nil, conflict("el tutor ya está vinculado al estudiante")
	}

	link := guardianLink(studentID, req)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.LinkGuardian(ctx, link)
	})
	if err != nil {
		return nil, writeError(err, "no se pudo vincular el tutor", "el tutor ya está vinculado al estudiante")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleStudents, studentID, "tutor vinculado a "+student.Code, nil, link))
	return s.Get(ctx, studentID)
}

// UnlinkGuardian removes a student-guardian link.
func (s *StudentService) UnlinkGuardian(ctx context.Context, meta models.RequestMeta, studentID, guardianID string) error {
	student, err := s.repo.FindByID(ctx, studentID)
	if err != nil {
		return lookupError(err, "estudiante no encontrado")
	}
	removed, err := s.repo.UnlinkGuardian(ctx, studentID, guardianID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo desvincular el tutor")
	}
	if !removed {
		return notFound("el tutor no está vinculado al estudiante")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleStudents, studentID, "tutor desvinculado de "+student.Code,
		map[string]string{"guardian_id": guardianID}, nil))
	return nil
}

// Enrollments lists the enrollments of a student.
func (s *StudentService) Enrollments(ctx context.Context, studentID string, page, size int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if _, err := s.repo.FindByID(ctx, studentID); err != nil {
		return nil, nil, lookupError(err, "estudiante no encontrado")
	}
	items, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{StudentID: studentID, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar las matrículas")
	}
	return items, models.NewPagination(page, size, total), nil
}

func (s *StudentService) apply(ctx context.Context, student *models.Student, req models.StudentRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	birth, err := parseOptionalDate(req.BirthDate, "birth_date")
	if err != nil {
		return err
	}
	ci := strings.TrimSpace(req.CI)
	if ci != "" {
		exists, err := s.repo.CIExists(ctx, ci, excludeID)
		if err != nil {
			return appErrors.Internal(err, "no se pudo verificar el CI")
		}
		if exists {
			return conflict("ya existe un estudiante con el CI " + ci)
		}
	}
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.PaternalSurname = strings.TrimSpace(req.PaternalSurname)
	student.MaternalSurname = strings.TrimSpace(req.MaternalSurname)
	student.CI = models.StringPtr(ci)
	student.BirthDate = birth
	student.Gender = req.Gender
	student.Address = strings.TrimSpace(req.Address)
	student.Phone = strings.TrimSpace(req.Phone)
	student.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Status != "" {
		student.Status = req.Status
	}
	return nil
}

func (s *StudentService) provision(ctx context.Context, student *models.Student) (*models.Credentials, error) {
	return s.accounts.provision(ctx, accountSpec{
		FirstName: student.FirstName,
		Surname:   firstSurname(student.PaternalSurname, student.MaternalSurname),
		FullName:  student.FullName(),
		Email:     student.Email,
		CI:        models.StringValue(student.CI),
		Role:      models.RoleStudent,
	})
}

func guardianLink(studentID string, req models.LinkGuardianRequest) *models.StudentGuardian {
	link := &models.StudentGuardian{
		StudentID:             studentID,
		GuardianID:            req.GuardianID,
		Relationship:          req.Relationship,
		IsPrimary:             req.IsPrimary,
		CanPickUp:             true,
		ReceivesNotifications: true,
		ContactPriority:       req.ContactPriority,
	}
	if req.CanPickUp != nil {
		link.CanPickUp = *req.CanPickUp
	}
	if req.ReceivesNotifications != nil {
		link.ReceivesNotifications = *req.ReceivesNotifications
	}
	if link.ContactPriority == 0 {
		link.ContactPriority = 1
	}
	return link
}

func firstSurname(paternal, maternal string) string {
	if paternal != "" {
		return paternal
	}
	return maternal
}
