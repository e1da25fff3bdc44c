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
	"github.com/noah-isme/school-admin-api/pkg/config"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/export"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

const (
	enrollmentStatsPrefix  = "stats:enrollments:"
	duplicateEnrollmentMsg = "El estudiante ya tiene una matrícula en este periodo"
	defaultStatsTTL        = 5 * time.Minute
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListForExport(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForStudentPeriod(ctx context.Context, studentID, periodID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	SoftDelete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, periodID string) ([]models.StatusCount, error)
	CountByGrade(ctx context.Context, periodID string) ([]models.GradeCount, error)
	CountFlags(ctx context.Context, periodID string) (scholars, repeating int, err error)
	CreateDocument(ctx context.Context, doc *models.EnrollmentDocument) error
	Documents(ctx context.Context, enrollmentID string) ([]models.EnrollmentDocument, error)
	FindDocument(ctx context.Context, enrollmentID, documentID string) (*models.EnrollmentDocument, error)
	UpdateDocumentVerification(ctx context.Context, doc *models.EnrollmentDocument) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type sectionLocker interface {
	LockSection(ctx context.Context, id string) (*models.Section, error)
	CountActiveEnrollments(ctx context.Context, sectionID, periodID string) (int, error)
}

type periodFinder interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// statsCache is satisfied by *cache.Store.
type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// EnrollmentServiceDeps groups the collaborators of EnrollmentService.
type EnrollmentServiceDeps struct {
	Enrollments enrollmentRepository
	Sections    sectionLocker
	Periods     periodFinder
	Students    studentFinder
	Sequences   sequenceGenerator
	Tx          txRunner
	Storage     storage.Uploader
	Cache       statsCache
	Metrics     *MetricsService
	Audit       auditRecorder
	Validator   *validator.Validate
	Logger      *zap.Logger
	School      config.SchoolConfig
	StatsTTL    time.Duration
}

// EnrollmentService implements the enrollment workflow.
type EnrollmentService struct {
	repo      enrollmentRepository
	sections  sectionLocker
	periods   periodFinder
	students  studentFinder
	seq       sequenceGenerator
	tx        txRunner
	store     storage.Uploader
	cache     statsCache
	metrics   *MetricsService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	school    config.SchoolConfig
	statsTTL  time.Duration
	now       func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	s := &EnrollmentService{
		repo:      deps.Enrollments,
		sections:  deps.Sections,
		periods:   deps.Periods,
		students:  deps.Students,
		seq:       deps.Sequences,
		tx:        deps.Tx,
		store:     deps.Storage,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		validator: defaultValidator(deps.Validator),
		logger:    deps.Logger,
		school:    deps.School,
		statsTTL:  deps.StatsTTL,
		now:       time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if s.statsTTL <= 0 {
		s.statsTTL = defaultStatsTTL
	}
	return s
}

// enrollmentDraft is the input of place, shared by staff, self-service and
// pre-enrollment conversion.
type enrollmentDraft struct {
	StudentID      string
	SectionID      string
	PeriodID       string
	Date           time.Time
	IsScholarship  bool
	ScholarshipPct float64
	IsRepeating    bool
	Notes          string
	CreatedBy      *string
}

// place validates the draft, takes a seat in the section and inserts the
// enrollment. Must run inside a transaction.
func (s *EnrollmentService) place(ctx context.Context, draft enrollmentDraft) (*models.Enrollment, error) {
	if _, err := s.students.FindByID(ctx, draft.StudentID); err != nil {
		return nil, lookupError(err, "estudiante no encontrado")
	}
	period, err := s.periods.FindByID(ctx, draft.PeriodID)
	if err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	if period.IsClosed {
		return nil, conflict("el periodo " + period.Code + " está cerrado")
	}
	exists, err := s.repo.ExistsForStudentPeriod(ctx, draft.StudentID, draft.PeriodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar la matrícula")
	}
	if exists {
		return nil, conflict(duplicateEnrollmentMsg)
	}
	if _, err := s.takeSeat(ctx, draft.SectionID, draft.PeriodID); err != nil {
		return nil, err
	}

	n, err := s.seq.Next(ctx, "enrollment:"+period.Code)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el número de matrícula")
	}
	date := draft.Date
	if date.IsZero() {
		date = s.today()
	}
	enrollment := &models.Enrollment{
		EnrollmentNumber: sequenceCode("MAT-"+period.Code, n),
		StudentID:        draft.StudentID,
		SectionID:        draft.SectionID,
		PeriodID:         draft.PeriodID,
		EnrollmentDate:   date,
		Status:           models.EnrollmentActive,
		IsScholarship:    draft.IsScholarship,
		ScholarshipPct:   draft.ScholarshipPct,
		IsRepeating:      draft.IsRepeating,
		Notes:            strings.TrimSpace(draft.Notes),
		CreatedBy:        draft.CreatedBy,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, writeError(err, "no se pudo registrar la matrícula", duplicateEnrollmentMsg)
	}
	return enrollment, nil
}

// takeSeat locks the section row and rejects when it is full.
func (s *EnrollmentService) takeSeat(ctx context.Context, sectionID, periodID string) (*models.Section, error) {
	section, err := s.sections.LockSection(ctx, sectionID)
	if err != nil {
		return nil, lookupError(err, "sección no encontrada")
	}
	occupied, err := s.sections.CountActiveEnrollments(ctx, sectionID, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar la capacidad")
	}
	if occupied >= section.Capacity {
		s.metrics.ObserveCapacityRejection("section")
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("la sección %s no tiene cupos disponibles (%d/%d)", section.Name, occupied, section.Capacity))
	}
	return section, nil
}

// attach stores files and inserts one document row per file. Must run
// inside a transaction.
func (s *EnrollmentService) attach(ctx context.Context, batch *uploadBatch, enrollmentID string, files []models.UploadedFile) ([]models.EnrollmentDocument, error) {
	docs := make([]models.EnrollmentDocument, 0, len(files))
	for _, file := range files {
		obj, err := batch.put(ctx, enrollmentID, file)
		if err != nil {
			return nil, err
		}
		doc := models.EnrollmentDocument{
			EnrollmentID: enrollmentID,
			DocumentType: documentType(file.Field),
			FileName:     file.FileName,
			URL:          obj.URL,
			StorageKey:   obj.Key,
			MimeType:     file.ContentType,
			SizeBytes:    file.Size,
		}
		if err := s.repo.CreateDocument(ctx, &doc); err != nil {
			return nil, appErrors.Internal(err, "no se pudo registrar el documento")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func documentType(field string) string {
	if models.ValidDocumentType(field) {
		return field
	}
	return "otro"
}

// Create registers a staff enrollment with optional documents.
func (s *EnrollmentService) Create(ctx context.Context, meta models.RequestMeta, req models.CreateEnrollmentRequest, files []models.UploadedFile) (*models.EnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	date, err := parseOptionalDate(req.EnrollmentDate, "enrollment_date")
	if err != nil {
		return nil, err
	}
	draft := enrollmentDraft{
		StudentID:      req.StudentID,
		SectionID:      req.SectionID,
		PeriodID:       req.PeriodID,
		IsScholarship:  req.IsScholarship,
		ScholarshipPct: req.ScholarshipPct,
		IsRepeating:    req.IsRepeating,
		Notes:          req.Notes,
		CreatedBy:      meta.ActorID(),
	}
	if date != nil {
		draft.Date = *date
	}
	return s.register(ctx, meta, draft, files, "staff")
}

// AutoEnroll registers the caller's own student record. At least one
// document is required.
func (s *EnrollmentService) AutoEnroll(ctx context.Context, meta models.RequestMeta, req models.AutoEnrollmentRequest, files []models.UploadedFile) (*models.EnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if meta.Principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(files) == 0 {
		return nil, invalid("debe adjuntar al menos un documento")
	}
	student, err := s.students.FindByUserID(ctx, meta.Principal.UserID)
	if err != nil {
		return nil, lookupError(err, "no hay un estudiante vinculado a su cuenta")
	}
	return s.register(ctx, meta, enrollmentDraft{
		StudentID: student.ID,
		SectionID: req.SectionID,
		PeriodID:  req.PeriodID,
		Notes:     req.Notes,
		CreatedBy: meta.ActorID(),
	}, files, "auto")
}

func (s *EnrollmentService) register(ctx context.Context, meta models.RequestMeta, draft enrollmentDraft, files []models.UploadedFile, channel string) (*models.EnrollmentDetail, error) {
	batch := newUploadBatch(s.store, "enrollments", s.logger)
	var enrollment *models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if enrollment, err = s.place(ctx, draft); err != nil {
			return err
		}
		_, err = s.attach(ctx, batch, enrollment.ID, files)
		return err
	})
	if err != nil {
		batch.discard(ctx)
		return nil, passthrough(err, "no se pudo registrar la matrícula")
	}

	s.metrics.ObserveEnrollment(channel)
	s.invalidateStats(ctx)
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleEnrollments, enrollment.ID,
		"matrícula registrada: "+enrollment.EnrollmentNumber, nil, enrollment))
	return s.Get(ctx, enrollment.ID)
}

// List returns paginated enrollments.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar las matrículas")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with its documents.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "matrícula no encontrada")
	}
	docs, err := s.repo.Documents(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron cargar los documentos")
	}
	detail.Documents = docs
	return detail, nil
}

// Update edits scholarship, repeating flags and notes.
func (s *EnrollmentService) Update(ctx context.Context, meta models.RequestMeta, id string, req models.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "matrícula no encontrada")
	}
	before := *enrollment
	if req.IsScholarship != nil {
		enrollment.IsScholarship = *req.IsScholarship
		if !enrollment.IsScholarship {
			enrollment.ScholarshipPct = 0
		}
	}
	if req.ScholarshipPct != nil {
		enrollment.ScholarshipPct = *req.ScholarshipPct
	}
	if req.IsRepeating != nil {
		enrollment.IsRepeating = *req.IsRepeating
	}
	if req.Notes != nil {
		enrollment.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar la matrícula")
	}
	s.invalidateStats(ctx)
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleEnrollments, id, "matrícula actualizada: "+enrollment.EnrollmentNumber, before, enrollment))
	return s.Get(ctx, id)
}

// Delete soft deletes an enrollment and its documents.
func (s *EnrollmentService) Delete(ctx context.Context, meta models.RequestMeta, id string) error {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "matrícula no encontrada")
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.SoftDelete(ctx, id)
	})
	if err != nil {
		return appErrors.Internal(err, "no se pudo eliminar la matrícula")
	}
	s.invalidateStats(ctx)
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleEnrollments, id, "matrícula eliminada: "+enrollment.EnrollmentNumber, enrollment, nil))
	return nil
}

// ChangeStatus moves an enrollment to another status. Withdrawals and
// transfers stamp date and reason; reactivation re-checks capacity.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, meta models.RequestMeta, id string, req models.ChangeEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, invalid("estado de matrícula inválido: " + string(req.Status))
	}
	date, err := parseOptionalDate(req.Date, "date")
	if err != nil {
		return nil, err
	}

	var before, after models.Enrollment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		enrollment, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "matrícula no encontrada")
		}
		if enrollment.Status == req.Status {
			return conflict("la matrícula ya está en estado " + string(req.Status))
		}
		before = *enrollment
		if req.Status == models.EnrollmentActive {
			if _, err := s.takeSeat(ctx, enrollment.SectionID, enrollment.PeriodID); err != nil {
				return err
			}
		}
		enrollment.Status = req.Status
		if req.Status.StampsWithdrawal() {
			stamp := s.today()
			if date != nil {
				stamp = *date
			}
			enrollment.WithdrawalDate = &stamp
			enrollment.WithdrawalReason = models.StringPtr(strings.TrimSpace(req.Reason))
		} else if req.Status == models.EnrollmentActive {
			enrollment.WithdrawalDate = nil
			enrollment.WithdrawalReason = nil
		}
		if err := s.repo.Update(ctx, enrollment); err != nil {
			return appErrors.Internal(err, "no se pudo cambiar el estado")
		}
		after = *enrollment
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo cambiar el estado")
	}
	s.invalidateStats(ctx)
	s.audit.Record(ctx, audit(meta, models.ActionChangeStatus, models.ModuleEnrollments, id,
		fmt.Sprintf("matrícula %s: %s → %s", after.EnrollmentNumber, before.Status, after.Status), before, after))
	return s.Get(ctx, id)
}

// Transfer moves an active enrollment to another section with free seats.
func (s *EnrollmentService) Transfer(ctx context.Context, meta models.RequestMeta, id string, req models.TransferSectionRequest) (*models.EnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	var before, after models.Enrollment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		enrollment, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return lookupError(err, "matrícula no encontrada")
		}
		if enrollment.SectionID == req.SectionID {
			return invalid("la matrícula ya pertenece a esa sección")
		}
		if enrollment.Status != models.EnrollmentActive {
			return conflict("solo se pueden transferir matrículas activas")
		}
		if _, err := s.takeSeat(ctx, req.SectionID, enrollment.PeriodID); err != nil {
			return err
		}
		before = *enrollment
		enrollment.SectionID = req.SectionID
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			enrollment.Notes = strings.TrimSpace(enrollment.Notes + "\nTransferencia: " + reason)
		}
		if err := s.repo.Update(ctx, enrollment); err != nil {
			return appErrors.Internal(err, "no se pudo transferir la matrícula")
		}
		after = *enrollment
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo transferir la matrícula")
	}
	s.invalidateStats(ctx)
	s.audit.Record(ctx, audit(meta, models.ActionTransfer, models.ModuleEnrollments, id, "matrícula transferida: "+after.EnrollmentNumber, before, after))
	return s.Get(ctx, id)
}

// AddDocuments uploads more documents to an enrollment.
func (s *EnrollmentService) AddDocuments(ctx context.Context, meta models.RequestMeta, id string, files []models.UploadedFile) ([]models.EnrollmentDocument, error) {
	if len(files) == 0 {
		return nil, invalid("no se adjuntó ningún documento")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "matrícula no encontrada")
	}
	batch := newUploadBatch(s.store, "enrollments", s.logger)
	var docs []models.EnrollmentDocument
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		docs, err = s.attach(ctx, batch, id, files)
		return err
	})
	if err != nil {
		batch.discard(ctx)
		return nil, passthrough(err, "no se pudieron registrar los documentos")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpload, models.ModuleEnrollments, id,
		fmt.Sprintf("%d documento(s) agregados a %s", len(docs), enrollment.EnrollmentNumber), nil, docs))
	return docs, nil
}

// VerifyDocument marks a document verified or pending.
func (s *EnrollmentService) VerifyDocument(ctx context.Context, meta models.RequestMeta, enrollmentID, documentID string, req models.VerifyDocumentRequest) (*models.EnrollmentDocument, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindDocument(ctx, enrollmentID, documentID)
	if err != nil {
		return nil, lookupError(err, "documento no encontrado")
	}
	before := *doc
	doc.IsVerified = req.Verified
	doc.Notes = strings.TrimSpace(req.Notes)
	if req.Verified {
		now := s.now().UTC()
		doc.VerifiedAt = &now
		doc.VerifiedBy = meta.ActorID()
	} else {
		doc.VerifiedAt, doc.VerifiedBy = nil, nil
	}
	if err := s.repo.UpdateDocumentVerification(ctx, doc); err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar el documento")
	}
	s.audit.Record(ctx, audit(meta, models.ActionVerifyDocs, models.ModuleEnrollments, enrollmentID, "documento revisado: "+doc.FileName, before, doc))
	return doc, nil
}

// DeleteDocument removes a document row and its stored object.
func (s *EnrollmentService) DeleteDocument(ctx context.Context, meta models.RequestMeta, enrollmentID, documentID string) error {
	doc, err := s.repo.FindDocument(ctx, enrollmentID, documentID)
	if err != nil {
		return lookupError(err, "documento no encontrado")
	}
	if err := s.repo.DeleteDocument(ctx, documentID); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el documento")
	}
	if s.store != nil && doc.StorageKey != "" {
		if err := s.store.Delete(context.WithoutCancel(ctx), doc.StorageKey); err != nil {
			s.logger.Warn("failed to delete stored document", zap.String("key", doc.StorageKey), zap.Error(err))
		}
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleEnrollments, enrollmentID, "documento eliminado: "+doc.FileName, doc, nil))
	return nil
}

// Stats summarises a period, served from cache when possible.
func (s *EnrollmentService) Stats(ctx context.Context, periodID string) (*models.EnrollmentStats, error) {
	if periodID == "" {
		return nil, invalid("el periodo es obligatorio")
	}
	key := enrollmentStatsPrefix + periodID
	if s.cache != nil {
		start := time.Now()
		var cached models.EnrollmentStats
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("enrollment stats cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if _, err := s.periods.FindByID(ctx, periodID); err != nil {
		return nil, lookupError(err, "periodo no encontrado")
	}
	byStatus, err := s.repo.CountByStatus(ctx, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron calcular las estadísticas")
	}
	byGrade, err := s.repo.CountByGrade(ctx, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron calcular las estadísticas")
	}
	scholars, repeating, err := s.repo.CountFlags(ctx, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron calcular las estadísticas")
	}

	stats := &models.EnrollmentStats{PeriodID: periodID, ByStatus: map[string]int{}, ByGrade: byGrade, Scholars: scholars, Repeating: repeating}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	if stats.ByGrade == nil {
		stats.ByGrade = []models.GradeCount{}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("enrollment stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *EnrollmentService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(context.WithoutCancel(ctx), enrollmentStatsPrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate enrollment stats", zap.Error(err))
	}
}

var enrollmentExportHeaders = []string{"Nro. Matrícula", "Código", "Estudiante", "CI", "Nivel", "Grado", "Sección", "Turno", "Periodo", "Estado", "Fecha", "Becado", "Repitente"}

// Export renders the filtered enrollment list as xlsx, csv or pdf.
func (s *EnrollmentService) Export(ctx context.Context, filter models.EnrollmentFilter, format string) (*ExportFile, error) {
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, invalid("formato de exportación no soportado")
	}
	items, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo exportar las matrículas")
	}
	rows := make([]map[string]string, 0, len(items))
	for _, e := range items {
		rows = append(rows, map[string]string{
			"Nro. Matrícula": e.EnrollmentNumber,
			"Código":         e.StudentCode,
			"Estudiante":     e.StudentName,
			"CI":             models.StringValue(e.StudentCI),
			"Nivel":          e.LevelName,
			"Grado":          e.GradeName,
			"Sección":        e.SectionName,
			"Turno":          e.ShiftName,
			"Periodo":        e.PeriodCode,
			"Estado":         string(e.Status),
			"Fecha":          e.EnrollmentDate.Format(models.DateLayout),
			"Becado":         yesNo(e.IsScholarship),
			"Repitente":      yesNo(e.IsRepeating),
		})
	}
	data, err := renderer.Render(export.Dataset{Title: "Matrículas", Headers: enrollmentExportHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el archivo")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("matriculas-%s.%s", s.now().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

// Certificate renders a proof of enrollment PDF.
func (s *EnrollmentService) Certificate(ctx context.Context, id string) (*ExportFile, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "matrícula no encontrada")
	}
	data, err := export.RenderCertificate(s.school, export.EnrollmentCertificate{
		EnrollmentNumber: detail.EnrollmentNumber,
		StudentName:      detail.StudentName,
		StudentCode:      detail.StudentCode,
		StudentCI:        models.StringValue(detail.StudentCI),
		Level:            detail.LevelName,
		Grade:            detail.GradeName,
		Section:          detail.SectionName,
		Shift:            detail.ShiftName,
		Period:           detail.PeriodName,
		Status:           string(detail.Status),
		EnrollmentDate:   detail.EnrollmentDate,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar la constancia")
	}
	return &ExportFile{
		FileName:    "constancia-" + detail.EnrollmentNumber + ".pdf",
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (s *EnrollmentService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
