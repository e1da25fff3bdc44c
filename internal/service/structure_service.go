package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type structureRepository interface {
	ListLevels(ctx context.Context) ([]models.Level, error)
	FindLevel(ctx context.Context, id string) (*models.Level, error)
	CreateLevel(ctx context.Context, level *models.Level) error
	UpdateLevel(ctx context.Context, level *models.Level) error
	DeleteLevel(ctx context.Context, id string) error

	ListGrades(ctx context.Context, levelID string) ([]models.Grade, error)
	FindGrade(ctx context.Context, id string) (*models.Grade, error)
	CreateGrade(ctx context.Context, grade *models.Grade) error
	UpdateGrade(ctx context.Context, grade *models.Grade) error
	DeleteGrade(ctx context.Context, id string) error

	ListShifts(ctx context.Context) ([]models.Shift, error)
	FindShift(ctx context.Context, id string) (*models.Shift, error)
	CreateShift(ctx context.Context, shift *models.Shift) error
	UpdateShift(ctx context.Context, shift *models.Shift) error
	DeleteShift(ctx context.Context, id string) error

	ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
	CreateSection(ctx context.Context, section *models.Section) error
	UpdateSection(ctx context.Context, section *models.Section) error
	DeleteSection(ctx context.Context, id string) error
	MaxActiveEnrollments(ctx context.Context, sectionID string) (int, error)

	ListSubjects(ctx context.Context, levelID string) ([]models.Subject, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	SubjectCodeExists(ctx context.Context, code, excludeID string) (bool, error)
	CreateSubject(ctx context.Context, subject *models.Subject) error
	UpdateSubject(ctx context.Context, subject *models.Subject) error
	DeleteSubject(ctx context.Context, id string) error
}

// StructureService manages levels, grades, shifts, sections and subjects.
type StructureService struct {
	repo      structureRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStructureService constructs a StructureService.
func NewStructureService(repo structureRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *StructureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &StructureService{repo: repo, audit: audit, validator: defaultValidator(validate), logger: logger}
}

func (s *StructureService) record(ctx context.Context, meta models.RequestMeta, action, id, description string, before, after interface{}) {
	s.audit.Record(ctx, audit(meta, action, models.ModuleStructure, id, description, before, after))
}

// Levels

func (s *StructureService) ListLevels(ctx context.Context) ([]models.Level, error) {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los niveles")
	}
	return levels, nil
}

func (s *StructureService) CreateLevel(ctx context.Context, meta models.RequestMeta, req models.LevelRequest) (*models.Level, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	level := &models.Level{Name: strings.TrimSpace(req.Name), Code: strings.ToUpper(strings.TrimSpace(req.Code)), SortOrder: req.SortOrder}
	if err := s.repo.CreateLevel(ctx, level); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el nivel")
	}
	s.record(ctx, meta, models.ActionCreate, level.ID, "nivel creado: "+level.Name, nil, level)
	return level, nil
}

func (s *StructureService) UpdateLevel(ctx context.Context, meta models.RequestMeta, id string, req models.LevelRequest) (*models.Level, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	level, err := s.repo.FindLevel(ctx, id)
	if err != nil {
		return nil, lookupError(err, "nivel no encontrado")
	}
	before := *level
	level.Name, level.Code, level.SortOrder = strings.TrimSpace(req.Name), strings.ToUpper(strings.TrimSpace(req.Code)), req.SortOrder
	if err := s.repo.UpdateLevel(ctx, level); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el nivel")
	}
	s.record(ctx, meta, models.ActionUpdate, id, "nivel actualizado: "+level.Name, before, level)
	return level, nil
}

func (s *StructureService) DeleteLevel(ctx context.Context, meta models.RequestMeta, id string) error {
	level, err := s.repo.FindLevel(ctx, id)
	if err != nil {
		return lookupError(err, "nivel no encontrado")
	}
	grades, err := s.repo.ListGrades(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el nivel")
	}
	if len(grades) > 0 {
		return conflict("el nivel tiene grados registrados")
	}
	if err := s.repo.DeleteLevel(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el nivel")
	}
	s.record(ctx, meta, models.ActionDelete, id, "nivel eliminado: "+level.Name, level, nil)
	return nil
}

// Grades

func (s *StructureService) ListGrades(ctx context.Context, levelID string) ([]models.Grade, error) {
	grades, err := s.repo.ListGrades(ctx, levelID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los grados")
	}
	return grades, nil
}

func (s *StructureService) CreateGrade(ctx context.Context, meta models.RequestMeta, req models.GradeRequest) (*models.Grade, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindLevel(ctx, req.LevelID); err != nil {
		return nil, lookupError(err, "nivel no encontrado")
	}
	grade := &models.Grade{LevelID: req.LevelID, Name: strings.TrimSpace(req.Name), SortOrder: req.SortOrder}
	if err := s.repo.CreateGrade(ctx, grade); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el grado")
	}
	s.record(ctx, meta, models.ActionCreate, grade.ID, "grado creado: "+grade.Name, nil, grade)
	return grade, nil
}

func (s *StructureService) UpdateGrade(ctx context.Context, meta models.RequestMeta, id string, req models.GradeRequest) (*models.Grade, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	grade, err := s.repo.FindGrade(ctx, id)
	if err != nil {
		return nil, lookupError(err, "grado no encontrado")
	}
	if req.LevelID != grade.LevelID {
		if _, err := s.repo.FindLevel(ctx, req.LevelID); err != nil {
			return nil, lookupError(err, "nivel no encontrado")
		}
	}
	before := *grade
	grade.LevelID, grade.Name, grade.SortOrder = req.LevelID, strings.TrimSpace(req.Name), req.SortOrder
	if err := s.repo.UpdateGrade(ctx, grade); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el grado")
	}
	s.record(ctx, meta, models.ActionUpdate, id, "grado actualizado: "+grade.Name, before, grade)
	return grade, nil
}

func (s *StructureService) DeleteGrade(ctx context.Context, meta models.RequestMeta, id string) error {
	grade, err := s.repo.FindGrade(ctx, id)
	if err != nil {
		return lookupError(err, "grado no encontrado")
	}
	sections, err := s.repo.ListSections(ctx, models.SectionFilter{GradeID: id})
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el grado")
	}
	if len(sections) > 0 {
		return conflict("el grado tiene secciones registradas")
	}
	if err := s.repo.DeleteGrade(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el grado")
	}
	s.record(ctx, meta, models.ActionDelete, id, "grado eliminado: "+grade.Name, grade, nil)
	return nil
}

// Shifts

func (s *StructureService) ListShifts(ctx context.Context) ([]models.Shift, error) {
	shifts, err := s.repo.ListShifts(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar los turnos")
	}
	return shifts, nil
}

func (s *StructureService) CreateShift(ctx context.Context, meta models.RequestMeta, req models.ShiftRequest) (*models.Shift, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	shift := &models.Shift{Name: strings.TrimSpace(req.Name), StartTime: req.StartTime, EndTime: req.EndTime}
	if err := s.repo.CreateShift(ctx, shift); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el turno")
	}
	s.record(ctx, meta, models.ActionCreate, shift.ID, "turno creado: "+shift.Name, nil, shift)
	return shift, nil
}

func (s *StructureService) UpdateShift(ctx context.Context, meta models.RequestMeta, id string, req models.ShiftRequest) (*models.Shift, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	shift, err := s.repo.FindShift(ctx, id)
	if err != nil {
		return nil, lookupError(err, "turno no encontrado")
	}
	before := *shift
	shift.Name, shift.StartTime, shift.EndTime = strings.TrimSpace(req.Name), req.StartTime, req.EndTime
	if err := s.repo.UpdateShift(ctx, shift); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el turno")
	}
	s.record(ctx, meta, models.ActionUpdate, id, "turno actualizado: "+shift.Name, before, shift)
	return shift, nil
}

func (s *StructureService) DeleteShift(ctx context.Context, meta models.RequestMeta, id string) error {
	shift, err := s.repo.FindShift(ctx, id)
	if err != nil {
		return lookupError(err, "turno no encontrado")
	}
	sections, err := s.repo.ListSections(ctx, models.SectionFilter{ShiftID: id})
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar el turno")
	}
	if len(sections) > 0 {
		return conflict("el turno tiene secciones registradas")
	}
	if err := s.repo.DeleteShift(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar el turno")
	}
	s.record(ctx, meta, models.ActionDelete, id, "turno eliminado: "+shift.Name, shift, nil)
	return nil
}

// Sections

// ListSections returns sections with occupancy for filter.PeriodID.
func (s *StructureService) ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, error) {
	sections, err := s.repo.ListSections(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar las secciones")
	}
	return sections, nil
}

func (s *StructureService) GetSection(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindSection(ctx, id)
	if err != nil {
		return nil, lookupError(err, "sección no encontrada")
	}
	return section, nil
}

func (s *StructureService) CreateSection(ctx context.Context, meta models.RequestMeta, req models.SectionRequest) (*models.Section, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if err := s.ensureGradeShift(ctx, req.GradeID, req.ShiftID); err != nil {
		return nil, err
	}
	section := &models.Section{
		GradeID:   req.GradeID,
		ShiftID:   req.ShiftID,
		Name:      strings.ToUpper(strings.TrimSpace(req.Name)),
		Capacity:  req.Capacity,
		Classroom: strings.TrimSpace(req.Classroom),
	}
	if err := s.repo.CreateSection(ctx, section); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear la sección")
	}
	s.record(ctx, meta, models.ActionCreate, section.ID, "sección creada: "+section.Name, nil, section)
	return section, nil
}

// UpdateSection edits a section. Capacity cannot drop below the current headcount.
func (s *StructureService) UpdateSection(ctx context.Context, meta models.RequestMeta, id string, req models.SectionRequest) (*models.Section, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	section, err := s.repo.FindSection(ctx, id)
	if err != nil {
		return nil, lookupError(err, "sección no encontrada")
	}
	if req.GradeID != section.GradeID || req.ShiftID != section.ShiftID {
		if err := s.ensureGradeShift(ctx, req.GradeID, req.ShiftID); err != nil {
			return nil, err
		}
	}
	if req.Capacity < section.Capacity {
		headcount, err := s.repo.MaxActiveEnrollments(ctx, id)
		if err != nil {
			return nil, appErrors.Internal(err, "no se pudo verificar la ocupación")
		}
		if req.Capacity < headcount {
			return nil, conflict(fmt.Sprintf("la capacidad no puede ser menor a los %d estudiantes inscritos", headcount))
		}
	}
	before := *section
	section.GradeID = req.GradeID
	section.ShiftID = req.ShiftID
	section.Name = strings.ToUpper(strings.TrimSpace(req.Name))
	section.Capacity = req.Capacity
	section.Classroom = strings.TrimSpace(req.Classroom)
	if err := s.repo.UpdateSection(ctx, section); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar la sección")
	}
	s.record(ctx, meta, models.ActionUpdate, id, "sección actualizada: "+section.Name, before, section)
	return section, nil
}

func (s *StructureService) DeleteSection(ctx context.Context, meta models.RequestMeta, id string) error {
	section, err := s.repo.FindSection(ctx, id)
	if err != nil {
		return lookupError(err, "sección no encontrada")
	}
	headcount, err := s.repo.MaxActiveEnrollments(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar la ocupación")
	}
	if headcount > 0 {
		return conflict("la sección tiene estudiantes inscritos")
	}
	if err := s.repo.DeleteSection(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar la sección")
	}
	s.record(ctx, meta, models.ActionDelete, id, "sección eliminada: "+section.Name, section, nil)
	return nil
}

func (s *StructureService) ensureGradeShift(ctx context.Context, gradeID, shiftID string) error {
	if _, err := s.repo.FindGrade(ctx, gradeID); err != nil {
		return lookupError(err, "grado no encontrado")
	}
	if _, err := s.repo.FindShift(ctx, shiftID); err != nil {
		return lookupError(err, "turno no encontrado")
	}
	return nil
}

// Subjects

func (s *StructureService) ListSubjects(ctx context.Context, levelID string) ([]models.Subject, error) {
	subjects, err := s.repo.ListSubjects(ctx, levelID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo listar las materias")
	}
	return subjects, nil
}

func (s *StructureService) CreateSubject(ctx context.Context, meta models.RequestMeta, req models.SubjectRequest) (*models.Subject, error) {
	subject := &models.Subject{}
	if err := s.applySubject(ctx, subject, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSubject(ctx, subject); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear la materia")
	}
	s.record(ctx, meta, models.ActionCreate, subject.ID, "materia creada: "+subject.Code, nil, subject)
	return subject, nil
}

func (s *StructureService) UpdateSubject(ctx context.Context, meta models.RequestMeta, id string, req models.SubjectRequest) (*models.Subject, error) {
	subject, err := s.repo.FindSubject(ctx, id)
	if err != nil {
		return nil, lookupError(err, "materia no encontrada")
	}
	before := *subject
	if err := s.applySubject(ctx, subject, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSubject(ctx, subject); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar la materia")
	}
	s.record(ctx, meta, models.ActionUpdate, id, "materia actualizada: "+subject.Code, before, subject)
	return subject, nil
}

func (s *StructureService) DeleteSubject(ctx context.Context, meta models.RequestMeta, id string) error {
	subject, err := s.repo.FindSubject(ctx, id)
	if err != nil {
		return lookupError(err, "materia no encontrada")
	}
	if err := s.repo.DeleteSubject(ctx, id); err != nil {
		return appErrors.Internal(err, "no se pudo eliminar la materia")
	}
	s.record(ctx, meta, models.ActionDelete, id, "materia eliminada: "+subject.Code, subject, nil)
	return nil
}

func (s *StructureService) applySubject(ctx context.Context, subject *models.Subject, req models.SubjectRequest, excludeID string) error {
	if err := validate(s.validator, req); err != nil {
		return err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.SubjectCodeExists(ctx, code, excludeID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo verificar la materia")
	}
	if exists {
		return conflict("ya existe una materia con el código " + code)
	}
	if req.LevelID != nil && *req.LevelID != "" {
		if _, err := s.repo.FindLevel(ctx, *req.LevelID); err != nil {
			return lookupError(err, "nivel no encontrado")
		}
	}
	subject.Code = code
	subject.Name = strings.TrimSpace(req.Name)
	subject.LevelID = req.LevelID
	return nil
}
