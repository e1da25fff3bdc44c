package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/repository"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

type preEnrollmentRepository interface {
	List(ctx context.Context, filter models.PreEnrollmentFilter) ([]models.PreEnrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.PreEnrollment, error)
	LockByID(ctx context.Context, id string) (*models.PreEnrollment, error)
	Create(ctx context.Context, item *models.PreEnrollment) error
	Update(ctx context.Context, item *models.PreEnrollment) error
	CreateDocument(ctx context.Context, doc *models.PreEnrollmentDocument) error
	Documents(ctx context.Context, preEnrollmentID string) ([]models.PreEnrollmentDocument, error)
	FindDocument(ctx context.Context, preEnrollmentID, documentID string) (*models.PreEnrollmentDocument, error)
	ReviewDocument(ctx context.Context, doc *models.PreEnrollmentDocument) error
	ListQuotas(ctx context.Context, periodID string) ([]models.EnrollmentQuota, error)
	FindQuota(ctx context.Context, periodID, gradeID, shiftID string) (*models.EnrollmentQuota, error)
	UpsertQuota(ctx context.Context, quota *models.EnrollmentQuota) error
	ReserveQuota(ctx context.Context, periodID, gradeID, shiftID string) error
	ReleaseQuota(ctx context.Context, periodID, gradeID, shiftID string) error
}

// conversionStudents is the part of the student store a conversion writes to.
type conversionStudents interface {
	CIExists(ctx context.Context, ci, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	LinkGuardian(ctx context.Context, link *models.StudentGuardian) error
}

type conversionGuardians interface {
	FindByCI(ctx context.Context, ci string) (*models.Guardian, error)
	Create(ctx context.Context, guardian *models.Guardian) error
}

type sectionFinder interface {
	FindSection(ctx context.Context, id string) (*models.Section, error)
}

// PreEnrollmentServiceDeps groups the collaborators of PreEnrollmentService.
type PreEnrollmentServiceDeps struct {
	PreEnrollments preEnrollmentRepository
	Students       conversionStudents
	Guardians      conversionGuardians
	Sections       sectionFinder
	Periods        periodFinder
	Users          accountRepository
	Enrollments    *EnrollmentService
	Sequences      sequenceGenerator
	Tx             txRunner
	Storage        storage.Uploader
	Notifier       notifier
	Metrics        *MetricsService
	Audit          auditRecorder
	Validator      *validator.Validate
	Logger         *zap.Logger
	BcryptCost     int
}

// PreEnrollmentService drives admission requests from first contact to a
// converted student with an active enrollment.
type PreEnrollmentService struct {
	repo        preEnrollmentRepository
	students    conversionStudents
	guardians   conversionGuardians
	sections    sectionFinder
	periods     periodFinder
	accounts    accountProvisioner
	enrollments *EnrollmentService
	seq         sequenceGenerator
	tx          txRunner
	store       storage.Uploader
	notifier    notifier
	metrics     *MetricsService
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPreEnrollmentService constructs a PreEnrollmentService.
func NewPreEnrollmentService(deps PreEnrollmentServiceDeps) *PreEnrollmentService {
	s := &PreEnrollmentService{
		repo:        deps.PreEnrollments,
		students:    deps.Students,
		guardians:   deps.Guardians,
		sections:    deps.Sections,
		periods:     deps.Periods,
		accounts:    accountProvisioner{users: deps.Users, bcryptCost: deps.BcryptCost},
		enrollments: deps.Enrollments,
		seq:         deps.Sequences,
		tx:          deps.Tx,
		store:       deps.Storage,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		audit:       deps.Audit,
		validator:   defaultValidator(deps.Validator),
		logger:      deps.Logger,
		now:         time.Now,
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

func (s *PreEnrollmentService) List(ctx context.Context, filter models.PreEnrollmentFilter) ([]models.PreEnrollment, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar las preinscripciones")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *PreEnrollmentService) Get(ctx context.Context, id string) (*models.PreEnrollmentDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "preinscripción no encontrada")
	}
	docs, err := s.repo.Documents(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo consultar los documentos")
	}
	return &models.PreEnrollmentDetail{PreEnrollment: *item, Documents: docs}, nil
}

// Create takes one quota seat for the requested period, grade and shift
// and registers the request with a PRE-<year>-NNNN code.
func (s *PreEnrollmentService) Create(ctx context.Context, meta models.RequestMeta, req models.PreEnrollmentRequest) (*models.PreEnrollmentDetail, error) {
	item := &models.PreEnrollment{Status: models.PreEnrollmentStarted}
	if err := s.apply(item, req); err != nil {
		return nil, err
	}
	period, err := s.periods.FindByID(ctx, req.PeriodID)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	if period.IsClosed {
		return nil, conflict("el periodo " + period.Code + " está cerrado")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ReserveQuota(ctx, item.PeriodID, item.GradeID, item.ShiftID); err != nil {
			if errors.Is(err, repository.ErrNoSeat) {
				return s.quotaRejection(ctx, item)
			}
			return appErrors.Internal(err, "no se pudo reservar el cupo")
		}
		n, err := s.seq.Next(ctx, fmt.Sprintf("pre_enrollment:%d", s.now().Year()))
		if err != nil {
			return appErrors.Internal(err, "no se pudo generar el código de preinscripción")
		}
		item.Code = sequenceCode(fmt.Sprintf("PRE-%d", s.now().Year()), n)
		if err := s.repo.Create(ctx, item); err != nil {
			return appErrors.Internal(err, "no se pudo registrar la preinscripción")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo registrar la preinscripción")
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModulePreEnrollments, item.ID, "preinscripción registrada: "+item.Code, nil, item))
	return s.Get(ctx, item.ID)
}

// quotaRejection tells a missing quota apart from a full one.
func (s *PreEnrollmentService) quotaRejection(ctx context.Context, item *models.PreEnrollment) error {
	if _, err := s.repo.FindQuota(ctx, item.PeriodID, item.GradeID, item.ShiftID); err != nil {
		if isNotFound(err) {
			return conflict("no hay cupos habilitados para el grado y turno solicitados")
		}
		return appErrors.Internal(err, "no se pudo consultar el cupo")
	}
	s.metrics.ObserveCapacityRejection("quota")
	return appErrors.Clone(appErrors.ErrCapacityExceeded, "no hay cupos de preinscripción disponibles para el grado y turno solicitados")
}

// Update edits applicant data. Period, grade and shift stay fixed since
// they own the reserved quota seat.
func (s *PreEnrollmentService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.PreEnrollmentRequest) (*models.PreEnrollmentDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "preinscripción no encontrada")
	}
	if item.Status.Terminal() {
		return nil, conflict("la preinscripción ya no admite cambios")
	}
	if req.PeriodID != item.PeriodID || req.GradeID != item.GradeID || req.ShiftID != item.ShiftID {
		return nil, invalid("no se puede cambiar el periodo, grado o turno de una preinscripción")
	}
	before := *item
	if err := s.apply(item, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar la preinscripción")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModulePreEnrollments, id, "preinscripción actualizada: "+item.Code, before, item))
	return s.Get(ctx, id)
}

// Transition moves the request along one workflow edge. Closing states
// give the quota seat back.
func (s *PreEnrollmentService) Transition(ctx context.Context, meta models.RequestMeta, id string, req models.PreEnrollmentTransitionRequest) (*models.PreEnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, invalid("estado de preinscripción inválido")
	}
	var before, item models.PreEnrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return lookupError(err, "preinscripción no encontrada")
		}
		if !models.CanTransition(current.Status, req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("no se puede pasar de %s a %s", current.Status, req.Status))
		}
		before, item = *current, *current
		item.Status = req.Status
		if meta.Principal != nil {
			item.ReviewedBy = &meta.Principal.UserID
		}
		switch {
		case req.Status.Closing():
			item.RejectionReason = strings.TrimSpace(req.Reason)
			if err := s.repo.ReleaseQuota(ctx, item.PeriodID, item.GradeID, item.ShiftID); err != nil {
				return appErrors.Internal(err, "no se pudo liberar el cupo")
			}
		case req.Status == models.PreEnrollmentInterviewScheduled:
			if req.InterviewDate == nil {
				return invalid("debe indicar la fecha de la entrevista")
			}
			item.InterviewDate = req.InterviewDate
		case req.Status == models.PreEnrollmentInterviewDone:
			item.InterviewNotes = strings.TrimSpace(req.InterviewNotes)
		}
		if err := s.repo.Update(ctx, &item); err != nil {
			return appErrors.Internal(err, "no se pudo actualizar la preinscripción")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo cambiar el estado de la preinscripción")
	}
	s.notifier.Notify(ctx, statusMessage(&item, req.Reason))
	s.audit.Record(ctx, audit(meta, models.ActionChangeStatus, models.ModulePreEnrollments, id,
		fmt.Sprintf("preinscripción %s: %s -> %s", item.Code, before.Status, item.Status), before, item))
	return s.Get(ctx, id)
}

// AddDocuments stages uploaded files on the request.
func (s *PreEnrollmentService) AddDocuments(ctx context.Context, meta models.RequestMeta, id string, files []models.UploadedFile) ([]models.PreEnrollmentDocument, error) {
	if len(files) == 0 {
		return nil, invalid("debe adjuntar al menos un documento")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "preinscripción no encontrada")
	}
	if item.Status.Terminal() {
		return nil, conflict("la preinscripción ya no admite documentos")
	}
	batch := newUploadBatch(s.store, "pre-enrollments", s.logger)
	docs := make([]models.PreEnrollmentDocument, 0, len(files))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, file := range files {
			obj, err := batch.put(ctx, id, file)
			if err != nil {
				return err
			}
			doc := models.PreEnrollmentDocument{
				PreEnrollmentID: id,
				DocumentType:    documentType(file.Field),
				FileName:        file.FileName,
				URL:             obj.URL,
				StorageKey:      obj.Key,
				MimeType:        file.ContentType,
				SizeBytes:       file.Size,
				Status:          models.DocumentPending,
			}
			if err := s.repo.CreateDocument(ctx, &doc); err != nil {
				return appErrors.Internal(err, "no se pudo registrar el documento")
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		batch.discard(ctx)
		return nil, passthrough(err, "no se pudo guardar los documentos")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpload, models.ModulePreEnrollments, id,
		fmt.Sprintf("%d documento(s) agregados a %s", len(docs), item.Code), nil, docs))
	return docs, nil
}

// ReviewDocument approves or rejects a staged document.
func (s *PreEnrollmentService) ReviewDocument(ctx context.Context, meta models.RequestMeta, id, documentID string, req models.ReviewDocumentRequest) (*models.PreEnrollmentDocument, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindDocument(ctx, id, documentID)
	if err != nil {
		return nil, lookupError(err, "documento no encontrado")
	}
	before := *doc
	doc.Status = req.Status
	doc.ReviewNotes = strings.TrimSpace(req.Notes)
	if err := s.repo.ReviewDocument(ctx, doc); err != nil {
		return nil, appErrors.Internal(err, "no se pudo revisar el documento")
	}
	s.audit.Record(ctx, audit(meta, models.ActionReview, models.ModulePreEnrollments, documentID, "documento revisado: "+doc.FileName, before, doc))
	return doc, nil
}

// Convert turns an approved request into a guardian, a student and an
// active enrollment in one transaction. Any failure leaves nothing behind.
func (s *PreEnrollmentService) Convert(ctx context.Context, meta models.RequestMeta, id string, req models.ConvertPreEnrollmentRequest) (*models.ConversionResult, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	var (
		result       models.ConversionResult
		item         models.PreEnrollment
		student      *models.Student
		guardianName string
		guardianMail string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.LockByID(ctx, id)
		if err != nil {
			return lookupError(err, "preinscripción no encontrada")
		}
		if current.Status != models.PreEnrollmentApproved {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				"solo se pueden convertir preinscripciones aprobadas (estado actual: "+string(current.Status)+")")
		}
		item = *current
		if err := s.checkSection(ctx, &item, req.SectionID); err != nil {
			return err
		}

		guardian, reused, err := s.resolveGuardian(ctx, &item, req.CreateGuardianAccount, &result)
		if err != nil {
			return err
		}
		result.GuardianID, result.GuardianReused = guardian.ID, reused
		guardianName, guardianMail = guardian.FullName(), guardian.Email

		if student, err = s.createStudent(ctx, &item, req.CreateStudentAccount, &result); err != nil {
			return err
		}
		link := guardianLink(student.ID, models.LinkGuardianRequest{
			GuardianID:   guardian.ID,
			Relationship: relationshipOrDefault(item.GuardianRelationship),
			IsPrimary:    true,
		})
		if err := s.students.LinkGuardian(ctx, link); err != nil {
			return writeError(err, "no se pudo vincular el apoderado", "el apoderado ya está vinculado al estudiante")
		}

		var createdBy *string
		if meta.Principal != nil {
			createdBy = &meta.Principal.UserID
		}
		enrollment, err := s.enrollments.place(ctx, enrollmentDraft{
			StudentID: student.ID,
			SectionID: req.SectionID,
			PeriodID:  item.PeriodID,
			Notes:     "Matrícula generada desde la preinscripción " + item.Code,
			CreatedBy: createdBy,
		})
		if err != nil {
			return err
		}
		result.EnrollmentID, result.EnrollmentNumber = enrollment.ID, enrollment.EnrollmentNumber

		if result.DocumentsMoved, err = s.moveDocuments(ctx, item.ID, enrollment.ID); err != nil {
			return err
		}
		if err := s.repo.ReleaseQuota(ctx, item.PeriodID, item.GradeID, item.ShiftID); err != nil {
			return appErrors.Internal(err, "no se pudo liberar el cupo")
		}

		converted := s.now().UTC()
		item.Status = models.PreEnrollmentConverted
		item.ConvertedStudentID = &student.ID
		item.ConvertedEnrollmentID = &enrollment.ID
		item.ConvertedAt = &converted
		if err := s.repo.Update(ctx, &item); err != nil {
			return appErrors.Internal(err, "no se pudo cerrar la preinscripción")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo convertir la preinscripción")
	}

	result.PreEnrollmentID = id
	s.enrollments.metrics.ObserveEnrollment("pre_enrollment")
	s.enrollments.invalidateStats(ctx)
	if result.StudentAccount != nil {
		s.notifier.Notify(ctx, welcomeMessage(student.FullName(), guardianMail, result.StudentAccount))
	}
	if result.GuardianAccount != nil {
		s.notifier.Notify(ctx, welcomeMessage(guardianName, guardianMail, result.GuardianAccount))
	}
	s.notifier.Notify(ctx, statusMessage(&item, ""))
	s.audit.Record(ctx, audit(meta, models.ActionConvert, models.ModulePreEnrollments, id,
		fmt.Sprintf("preinscripción %s convertida en matrícula %s", item.Code, result.EnrollmentNumber), nil, result))
	return &result, nil
}

func (s *PreEnrollmentService) checkSection(ctx context.Context, item *models.PreEnrollment, sectionID string) error {
	section, err := s.sections.FindSection(ctx, sectionID)
	if err != nil {
		return lookupError(err, "sección no encontrada")
	}
	if section.GradeID != item.GradeID || section.ShiftID != item.ShiftID {
		return invalid("la sección no corresponde al grado y turno de la preinscripción")
	}
	return nil
}

// resolveGuardian reuses a live guardian with the same CI or creates one,
// with a login when withAccount is set. Reused guardians keep their account
// state.
func (s *PreEnrollmentService) resolveGuardian(ctx context.Context, item *models.PreEnrollment, withAccount bool, result *models.ConversionResult) (*models.Guardian, bool, error) {
	ci := strings.TrimSpace(item.GuardianCI)
	if ci != "" {
		existing, err := s.guardians.FindByCI(ctx, ci)
		if err == nil {
			return existing, true, nil
		}
		if !isNotFound(err) {
			return nil, false, appErrors.Internal(err, "no se pudo buscar el apoderado")
		}
	}
	guardian := &models.Guardian{
		FirstName:       item.GuardianFirstName,
		PaternalSurname: item.GuardianPaternalSurname,
		MaternalSurname: item.GuardianMaternalSurname,
		CI:              models.StringPtr(ci),
		Phone:           item.GuardianPhone,
		Email:           item.GuardianEmail,
		Occupation:      item.GuardianOccupation,
		Address:         item.StudentAddress,
	}
	if withAccount {
		creds, err := s.accounts.provision(ctx, accountSpec{
			FirstName: guardian.FirstName,
			Surname:   firstSurname(guardian.PaternalSurname, guardian.MaternalSurname),
			FullName:  guardian.FullName(),
			Email:     guardian.Email,
			CI:        ci,
			Role:      models.RoleParent,
		})
		if err != nil {
			return nil, false, err
		}
		guardian.UserID = &creds.UserID
		result.GuardianAccount = creds
	}
	if err := s.guardians.Create(ctx, guardian); err != nil {
		return nil, false, appErrors.Internal(err, "no se pudo registrar el apoderado")
	}
	return guardian, false, nil
}

func (s *PreEnrollmentService) createStudent(ctx context.Context, item *models.PreEnrollment, withAccount bool, result *models.ConversionResult) (*models.Student, error) {
	ci := strings.TrimSpace(item.StudentCI)
	if ci != "" {
		exists, err := s.students.CIExists(ctx, ci, "")
		if err != nil {
			return nil, appErrors.Internal(err, "no se pudo verificar el CI")
		}
		if exists {
			return nil, conflict("ya existe un estudiante con el CI " + ci)
		}
	}
	code, err := nextStudentCode(ctx, s.seq, s.now())
	if err != nil {
		return nil, err
	}
	student := &models.Student{
		Code:            code,
		FirstName:       item.StudentFirstName,
		PaternalSurname: item.StudentPaternalSurname,
		MaternalSurname: item.StudentMaternalSurname,
		CI:              models.StringPtr(ci),
		BirthDate:       item.StudentBirthDate,
		Gender:          item.StudentGender,
		Address:         item.StudentAddress,
		Status:          models.StudentStatusActive,
	}
	if withAccount {
		creds, err := s.accounts.provision(ctx, accountSpec{
			FirstName: student.FirstName,
			Surname:   firstSurname(student.PaternalSurname, student.MaternalSurname),
			FullName:  student.FullName(),
			CI:        ci,
			Role:      models.RoleStudent,
		})
		if err != nil {
			return nil, err
		}
		student.UserID = &creds.UserID
		result.StudentAccount = creds
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "no se pudo registrar el estudiante")
	}
	result.StudentID, result.StudentCode = student.ID, student.Code
	return student, nil
}

// moveDocuments copies staged documents onto the enrollment. Stored objects
// are reused as they are.
func (s *PreEnrollmentService) moveDocuments(ctx context.Context, preEnrollmentID, enrollmentID string) (int, error) {
	staged, err := s.repo.Documents(ctx, preEnrollmentID)
	if err != nil {
		return 0, appErrors.Internal(err, "no se pudo consultar los documentos")
	}
	moved := 0
	for _, d := range staged {
		if d.Status == models.DocumentRejected {
			continue
		}
		doc := models.EnrollmentDocument{
			EnrollmentID: enrollmentID,
			DocumentType: d.DocumentType,
			FileName:     d.FileName,
			URL:          d.URL,
			StorageKey:   d.StorageKey,
			MimeType:     d.MimeType,
			SizeBytes:    d.SizeBytes,
			IsVerified:   d.Status == models.DocumentApproved,
			Notes:        d.ReviewNotes,
		}
		if err := s.enrollments.repo.CreateDocument(ctx, &doc); err != nil {
			return 0, appErrors.Internal(err, "no se pudo trasladar el documento "+d.FileName)
		}
		moved++
	}
	return moved, nil
}

// ListQuotas returns every quota of a period.
func (s *PreEnrollmentService) ListQuotas(ctx context.Context, periodID string) ([]models.EnrollmentQuota, error) {
	items, err := s.repo.ListQuotas(ctx, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los cupos")
	}
	return items, nil
}

// SetQuota creates or resizes a quota. It cannot go below seats in use.
func (s *PreEnrollmentService) SetQuota(ctx context.Context, meta models.RequestMeta, req models.QuotaRequest) (*models.EnrollmentQuota, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if _, err := s.periods.FindByID(ctx, req.PeriodID); err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	quota := &models.EnrollmentQuota{PeriodID: req.PeriodID, GradeID: req.GradeID, ShiftID: req.ShiftID, TotalSeats: req.TotalSeats}
	if err := s.repo.UpsertQuota(ctx, quota); err != nil {
		if errors.Is(err, repository.ErrNoSeat) {
			return nil, conflict("el cupo no puede ser menor a las preinscripciones ya registradas")
		}
		return nil, appErrors.Internal(err, "no se pudo guardar el cupo")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModulePreEnrollments, quota.ID,
		fmt.Sprintf("cupo actualizado a %d", quota.TotalSeats), nil, quota))
	return quota, nil
}

func statusMessage(item *models.PreEnrollment, reason string) *mailer.Message {
	return &mailer.Message{
		To:       recipient(item.GuardianFullName(), item.GuardianEmail),
		Subject:  "Preinscripción " + item.Code,
		Template: mailer.TemplatePreEnrollment,
		Data: map[string]string{
			"GuardianName": item.GuardianFullName(),
			"Code":         item.Code,
			"StudentName":  item.StudentFullName(),
			"Status":       strings.ReplaceAll(string(item.Status), "_", " "),
			"Reason":       strings.TrimSpace(reason),
		},
	}
}

func relationshipOrDefault(rel string) string {
	if rel == "" {
		return "tutor"
	}
	return rel
}

func (s *PreEnrollmentService) apply(item *models.PreEnrollment, req models.PreEnrollmentRequest) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	birth, err := parseOptionalDate(req.StudentBirthDate, "student_birth_date")
	if err != nil {
		return err
	}
	item.PeriodID, item.GradeID, item.ShiftID = req.PeriodID, req.GradeID, req.ShiftID
	item.StudentFirstName = strings.TrimSpace(req.StudentFirstName)
	item.StudentPaternalSurname = strings.TrimSpace(req.StudentPaternalSurname)
	item.StudentMaternalSurname = strings.TrimSpace(req.StudentMaternalSurname)
	item.StudentCI = strings.TrimSpace(req.StudentCI)
	item.StudentBirthDate = birth
	item.StudentGender = req.StudentGender
	item.StudentAddress = strings.TrimSpace(req.StudentAddress)
	item.PreviousSchool = strings.TrimSpace(req.PreviousSchool)
	item.GuardianFirstName = strings.TrimSpace(req.GuardianFirstName)
	item.GuardianPaternalSurname = strings.TrimSpace(req.GuardianPaternalSurname)
	item.GuardianMaternalSurname = strings.TrimSpace(req.GuardianMaternalSurname)
	item.GuardianCI = strings.TrimSpace(req.GuardianCI)
	item.GuardianPhone = strings.TrimSpace(req.GuardianPhone)
	item.GuardianEmail = strings.ToLower(strings.TrimSpace(req.GuardianEmail))
	item.GuardianRelationship = req.GuardianRelationship
	item.GuardianOccupation = strings.TrimSpace(req.GuardianOccupation)
	item.Notes = strings.TrimSpace(req.Notes)
	return nil
}
