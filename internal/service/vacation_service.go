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
	"github.com/noah-isme/school-admin-api/pkg/config"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/export"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
)

type vacationRepository interface {
	ListPeriods(ctx context.Context) ([]models.VacationPeriod, error)
	FindPeriod(ctx context.Context, id string) (*models.VacationPeriod, error)
	PeriodCodeExists(ctx context.Context, code, excludeID string) (bool, error)
	CreatePeriod(ctx context.Context, period *models.VacationPeriod) error
	UpdatePeriod(ctx context.Context, period *models.VacationPeriod) error
	DeletePeriod(ctx context.Context, id string) error
	PeriodHasCourses(ctx context.Context, id string) (bool, error)
	ListCourses(ctx context.Context, filter models.VacationCourseFilter) ([]models.VacationCourse, error)
	FindCourse(ctx context.Context, id string) (*models.VacationCourse, error)
	CreateCourse(ctx context.Context, course *models.VacationCourse) error
	UpdateCourse(ctx context.Context, course *models.VacationCourse) error
	DeleteCourse(ctx context.Context, id string) error
	ReserveSeat(ctx context.Context, courseID string) (*models.VacationCourse, error)
	ReleaseSeat(ctx context.Context, courseID string) error
	CreateEnrollment(ctx context.Context, enrollment *models.VacationEnrollment) error
	FindEnrollment(ctx context.Context, id string) (*models.VacationEnrollmentDetail, error)
	FindEnrollments(ctx context.Context, ids []string) ([]models.VacationEnrollmentDetail, error)
	ListEnrollments(ctx context.Context, filter models.VacationEnrollmentFilter) ([]models.VacationEnrollmentDetail, int, error)
	VerifyPayment(ctx context.Context, enrollment *models.VacationEnrollment) error
	SoftDeleteEnrollment(ctx context.Context, id string) error
}

// VacationServiceDeps groups the collaborators of VacationService.
type VacationServiceDeps struct {
	Vacations vacationRepository
	Sequences sequenceGenerator
	Tx        txRunner
	Notifier  notifier
	Metrics   *MetricsService
	Audit     auditRecorder
	Validator *validator.Validate
	Logger    *zap.Logger
	School    config.SchoolConfig
}

// VacationService runs vacation programs: periods, courses, seat-counted
// enrollments, payment verification and receipts.
type VacationService struct {
	repo      vacationRepository
	seq       sequenceGenerator
	tx        txRunner
	notifier  notifier
	metrics   *MetricsService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	receipts  *export.ReceiptRenderer
	now       func() time.Time
}

// NewVacationService constructs a VacationService.
func NewVacationService(deps VacationServiceDeps) *VacationService {
	s := &VacationService{
		repo:      deps.Vacations,
		seq:       deps.Sequences,
		tx:        deps.Tx,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		audit:     deps.Audit,
		validator: defaultValidator(deps.Validator),
		logger:    deps.Logger,
		receipts:  export.NewReceiptRenderer(deps.School),
		now:       time.Now,
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

func (s *VacationService) ListPeriods(ctx context.Context) ([]models.VacationPeriod, error) {
	items, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los periodos vacacionales")
	}
	return items, nil
}

func (s *VacationService) GetPeriod(ctx context.Context, id string) (*models.VacationPeriod, error) {
	p, err := s.repo.FindPeriod(ctx, id)
	if err != nil {
		return nil, lookupError(err, "periodo vacacional no encontrado")
	}
	return p, nil
}

func (s *VacationService) CreatePeriod(ctx context.Context, meta models.RequestMeta, req models.VacationPeriodRequest) (*models.VacationPeriod, error) {
	period := &models.VacationPeriod{IsActive: true}
	if err := s.applyPeriod(ctx, period, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePeriod(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el periodo vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleVacation, period.ID, "periodo vacacional creado: "+period.Code, nil, period))
	return period, nil
}

func (s *VacationService) UpdatePeriod(ctx context.Context, meta models.RequestMeta, id string, req models.VacationPeriodRequest) (*models.VacationPeriod, error) {
	period, err := s.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *period
	if err := s.applyPeriod(ctx, period, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePeriod(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el periodo vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleVacation, id, "periodo vacacional actualizado: "+period.Code, before, period))
	return period, nil
}

// DeletePeriod refuses periods that still offer courses.
func (s *VacationService) DeletePeriod(ctx context.Context, meta models.RequestMeta, id string) error {
	period, err := s.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	hasCourses, err := s.repo.PeriodHasCourses(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar los cursos del periodo")
	}
	if hasCourses {
		return conflict("el periodo vacacional tiene cursos registrados")
	}
	if err := s.repo.DeletePeriod(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el periodo vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleVacation, id, "periodo vacacional eliminado: "+period.Code, period, nil))
	return nil
}

func (s *VacationService) applyPeriod(ctx context.Context, p *models.VacationPeriod, req models.VacationPeriodRequest, excludeID string) error {
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
	if end.Before(start) {
		return invalid("la fecha de fin debe ser posterior a la de inicio")
	}
	openFrom, err := parseOptionalDate(req.EnrollmentStart, "enrollment_start")
	if err != nil {
		return err
	}
	openUntil, err := parseOptionalDate(req.EnrollmentEnd, "enrollment_end")
	if err != nil {
		return err
	}
	if openFrom != nil && openUntil != nil && openUntil.Before(*openFrom) {
		return invalid("el cierre de inscripciones debe ser posterior a la apertura")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	taken, err := s.repo.PeriodCodeExists(ctx, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el código")
	}
	if taken {
		return conflict("ya existe un periodo vacacional con el código " + code)
	}
	p.Name = strings.TrimSpace(req.Name)
	p.Code = code
	p.StartDate, p.EndDate = start, end
	p.EnrollmentStart, p.EnrollmentEnd = openFrom, openUntil
	p.Description = strings.TrimSpace(req.Description)
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return nil
}

func (s *VacationService) ListCourses(ctx context.Context, filter models.VacationCourseFilter) ([]models.VacationCourse, error) {
	items, err := s.repo.ListCourses(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los cursos vacacionales")
	}
	return items, nil
}

func (s *VacationService) GetCourse(ctx context.Context, id string) (*models.VacationCourse, error) {
	c, err := s.repo.FindCourse(ctx, id)
	if err != nil {
		return nil, lookupError(err, "curso vacacional no encontrado")
	}
	return c, nil
}

func (s *VacationService) CreateCourse(ctx context.Context, meta models.RequestMeta, req models.VacationCourseRequest) (*models.VacationCourse, error) {
	course := &models.VacationCourse{IsActive: true}
	if err := s.applyCourse(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el curso vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleVacation, course.ID, "curso vacacional creado: "+course.Name, nil, course))
	return course, nil
}

// UpdateCourse cannot shrink total seats below the seats already taken.
func (s *VacationService) UpdateCourse(ctx context.Context, meta models.RequestMeta, id string, req models.VacationCourseRequest) (*models.VacationCourse, error) {
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *course
	if err := s.applyCourse(ctx, course, req); err != nil {
		return nil, err
	}
	if course.TotalSeats < course.OccupiedSeats {
		return nil, conflict(fmt.Sprintf("los cupos no pueden ser menores a los %d ocupados", course.OccupiedSeats))
	}
	if err := s.repo.UpdateCourse(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el curso vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionUpdate, models.ModuleVacation, id, "curso vacacional actualizado: "+course.Name, before, course))
	return course, nil
}

func (s *VacationService) DeleteCourse(ctx context.Context, meta models.RequestMeta, id string) error {
	course, err := s.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if course.OccupiedSeats > 0 {
		return conflict("el curso tiene inscritos y no puede eliminarse")
	}
	if err := s.repo.DeleteCourse(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el curso vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleVacation, id, "curso vacacional eliminado: "+course.Name, course, nil))
	return nil
}

func (s *VacationService) applyCourse(ctx context.Context, c *models.VacationCourse, req models.VacationCourseRequest) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	if req.MaxAge > 0 && req.MinAge > req.MaxAge {
		return invalid("la edad mínima no puede superar la máxima")
	}
	if _, err := s.repo.FindPeriod(ctx, req.VacationPeriodID); err != nil {
		return lookupError(err, "periodo vacacional no encontrado")
	}
	start, err := parseOptionalDate(req.StartDate, "start_date")
	if err != nil {
		return err
	}
	end, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return err
	}
	c.VacationPeriodID = req.VacationPeriodID
	c.Name = strings.TrimSpace(req.Name)
	c.Description = strings.TrimSpace(req.Description)
	c.Area = strings.TrimSpace(req.Area)
	c.InstructorName = strings.TrimSpace(req.InstructorName)
	c.Schedule = strings.TrimSpace(req.Schedule)
	c.MinAge, c.MaxAge = req.MinAge, req.MaxAge
	c.Cost = req.Cost
	c.TotalSeats = req.TotalSeats
	c.StartDate, c.EndDate = start, end
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	return nil
}

func (s *VacationService) ListEnrollments(ctx context.Context, filter models.VacationEnrollmentFilter) ([]models.VacationEnrollmentDetail, *models.Pagination, error) {
	items, total, err := s.repo.ListEnrollments(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo listar las inscripciones vacacionales")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *VacationService) GetEnrollment(ctx context.Context, id string) (*models.VacationEnrollmentDetail, error) {
	e, err := s.repo.FindEnrollment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "inscripción vacacional no encontrada")
	}
	return e, nil
}

// Enroll takes one seat and registers the participant in the same
// transaction. A full course yields ErrCapacityExceeded.
func (s *VacationService) Enroll(ctx context.Context, meta models.RequestMeta, req models.VacationEnrollmentRequest) (*models.VacationEnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	birth, err := parseOptionalDate(req.ParticipantBirthDate, "participant_birth_date")
	if err != nil {
		return nil, err
	}
	course, err := s.GetCourse(ctx, req.VacationCourseID)
	if err != nil {
		return nil, err
	}
	period, err := s.GetPeriod(ctx, course.VacationPeriodID)
	if err != nil {
		return nil, err
	}
	if !period.EnrollmentOpen(s.now()) {
		return nil, conflict("las inscripciones del periodo " + period.Code + " no están abiertas")
	}
	if err := checkAge(course, birth, period.StartDate); err != nil {
		return nil, err
	}

	enrollment := &models.VacationEnrollment{
		VacationCourseID:     course.ID,
		StudentID:            req.StudentID,
		ParticipantName:      strings.TrimSpace(req.ParticipantName),
		ParticipantCI:        strings.TrimSpace(req.ParticipantCI),
		ParticipantBirthDate: birth,
		PayerName:            strings.TrimSpace(req.PayerName),
		PayerCI:              strings.TrimSpace(req.PayerCI),
		PayerPhone:           strings.TrimSpace(req.PayerPhone),
		PayerEmail:           strings.ToLower(strings.TrimSpace(req.PayerEmail)),
		Amount:               course.Cost,
		PaymentMethod:        req.PaymentMethod,
		PaymentReference:     strings.TrimSpace(req.PaymentReference),
		Status:               models.VacationEnrolled,
		Notes:                strings.TrimSpace(req.Notes),
	}
	if req.Amount != nil {
		enrollment.Amount = *req.Amount
	}
	if meta.Principal != nil {
		enrollment.CreatedBy = &meta.Principal.UserID
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.ReserveSeat(ctx, course.ID); err != nil {
			if errors.Is(err, repository.ErrNoSeat) {
				s.metrics.ObserveCapacityRejection("vacation_course")
				return appErrors.Clone(appErrors.ErrCapacityExceeded, "el curso "+course.Name+" no tiene cupos disponibles")
			}
			return appErrors.Internal(err, "no se pudo reservar el cupo")
		}
		n, err := s.seq.Next(ctx, "vacation:"+period.Code)
		if err != nil {
			return appErrors.Internal(err, "no se pudo generar el código de inscripción")
		}
		enrollment.Code = sequenceCode("VAC-"+period.Code, n)
		if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
			return appErrors.Internal(err, "no se pudo registrar la inscripción vacacional")
		}
		return nil
	})
	if err != nil {
		return nil, passthrough(err, "no se pudo registrar la inscripción vacacional")
	}

	s.notifier.Notify(ctx, &mailer.Message{
		To:       recipient(enrollment.PayerName, enrollment.PayerEmail),
		Subject:  "Inscripción a curso vacacional " + enrollment.Code,
		Template: mailer.TemplateVacationEnrollment,
		Data: map[string]string{
			"PayerName":       enrollment.PayerName,
			"ParticipantName": enrollment.ParticipantName,
			"CourseName":      course.Name,
			"Code":            enrollment.Code,
			"Amount":          fmt.Sprintf("%.2f", enrollment.Amount),
			"Schedule":        course.Schedule,
		},
	})
	s.audit.Record(ctx, audit(meta, models.ActionCreate, models.ModuleVacation, enrollment.ID, "inscripción vacacional: "+enrollment.Code, nil, enrollment))
	return s.GetEnrollment(ctx, enrollment.ID)
}

// VerifyPayment marks the payment confirmed by the acting user.
func (s *VacationService) VerifyPayment(ctx context.Context, meta models.RequestMeta, id string, req models.VerifyPaymentRequest) (*models.VacationEnrollmentDetail, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	current, err := s.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PaymentVerified {
		return nil, conflict("el pago ya fue verificado")
	}
	enrollment := current.VacationEnrollment
	now := s.now().UTC()
	enrollment.PaymentVerified = true
	enrollment.PaymentVerifiedAt = &now
	if meta.Principal != nil {
		enrollment.PaymentVerifiedBy = &meta.Principal.UserID
	}
	if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
		enrollment.PaymentReference = ref
	}
	if req.PaymentMethod != "" {
		enrollment.PaymentMethod = req.PaymentMethod
	}
	if err := s.repo.VerifyPayment(ctx, &enrollment); err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar el pago")
	}
	s.audit.Record(ctx, audit(meta, models.ActionVerifyPayment, models.ModuleVacation, id, "pago verificado: "+enrollment.Code, current.VacationEnrollment, enrollment))
	return s.GetEnrollment(ctx, id)
}

// DeleteEnrollment annuls the enrollment and gives its seat back in one
// transaction.
func (s *VacationService) DeleteEnrollment(ctx context.Context, meta models.RequestMeta, id string) error {
	current, err := s.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SoftDeleteEnrollment(ctx, id); err != nil {
			return err
		}
		return s.repo.ReleaseSeat(ctx, current.VacationCourseID)
	})
	if err != nil {
		if isNotFound(err) {
			return notFound("inscripción vacacional no encontrada")
		}
		return appErrors.Internal(err, "no se pudo anular la inscripción vacacional")
	}
	s.audit.Record(ctx, audit(meta, models.ActionDelete, models.ModuleVacation, id, "inscripción vacacional anulada: "+current.Code, current.VacationEnrollment, nil))
	return nil
}

// Receipt renders one PDF receipt covering every enrollment in ids. All
// enrollments must share the same payer.
func (s *VacationService) Receipt(ctx context.Context, ids []string) (*ExportFile, error) {
	if len(ids) == 0 {
		return nil, invalid("debe indicar al menos una inscripción")
	}
	wanted := uniqueStrings(ids)
	items, err := s.repo.FindEnrollments(ctx, wanted)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo consultar las inscripciones")
	}
	if len(items) == 0 || len(items) != len(wanted) {
		return nil, notFound("inscripción vacacional no encontrada")
	}
	first := items[0]
	rec := export.Receipt{
		Number:           first.Code,
		IssuedAt:         s.now(),
		PayerName:        first.PayerName,
		PayerCI:          first.PayerCI,
		PayerPhone:       first.PayerPhone,
		PaymentMethod:    first.PaymentMethod,
		PaymentReference: first.PaymentReference,
		Verified:         true,
	}
	for _, it := range items {
		if it.PayerCI != first.PayerCI || it.PayerName != first.PayerName {
			return nil, invalid("las inscripciones del recibo deben pertenecer al mismo pagador")
		}
		rec.Verified = rec.Verified && it.PaymentVerified
		rec.Items = append(rec.Items, export.ReceiptItem{
			Code:        it.Code,
			Description: it.CourseName,
			Participant: it.ParticipantName,
			Amount:      it.Amount,
		})
	}
	data, err := s.receipts.Render(rec)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo generar el recibo")
	}
	return &ExportFile{FileName: "recibo-" + first.Code + ".pdf", ContentType: "application/pdf", Data: data}, nil
}

// checkAge validates the participant age on the first day of the period.
// Unknown birth dates skip the check.
func checkAge(course *models.VacationCourse, birth *time.Time, on time.Time) error {
	if birth == nil || (course.MinAge == 0 && course.MaxAge == 0) {
		return nil
	}
	age := ageOn(*birth, on)
	if age < course.MinAge || (course.MaxAge > 0 && age > course.MaxAge) {
		return invalid(fmt.Sprintf("la edad del participante (%d) está fuera del rango del curso (%d-%d)", age, course.MinAge, course.MaxAge))
	}
	return nil
}

func ageOn(birth, on time.Time) int {
	age := on.Year() - birth.Year()
	if on.Month() < birth.Month() || (on.Month() == birth.Month() && on.Day() < birth.Day()) {
		age--
	}
	return age
}
