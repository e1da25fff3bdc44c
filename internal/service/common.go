package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/database"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

// txRunner executes fn inside a database transaction carried by ctx.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sequenceGenerator interface {
	Next(ctx context.Context, key string) (int64, error)
}

// auditRecorder persists activity log entries. Implementations never fail
// the calling operation.
type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, models.AuditEntry) {}

// NewValidator returns a validator reporting JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func defaultValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	return v
}

func validate(v *validator.Validate, payload interface{}) error {
	if err := v.Struct(payload); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Validation(err, appErrors.ErrValidation.Message)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return appErrors.Validation(err, "datos inválidos: "+strings.Join(fields, ", "))
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func notFound(message string) error {
	return appErrors.Clone(appErrors.ErrNotFound, message)
}

func conflict(message string) error {
	return appErrors.Clone(appErrors.ErrConflict, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// lookupError maps sql.ErrNoRows to a 404 and anything else to a 500.
func lookupError(err error, message string) error {
	if isNotFound(err) {
		return notFound(message)
	}
	return appErrors.Internal(err, "no se pudo consultar: "+message)
}

// writeError maps a unique index conflict to a 409 with duplicate as the
// message and anything else to a 500.
func writeError(err error, message, duplicate string) error {
	if database.IsDuplicate(err) {
		return conflict(duplicate)
	}
	return appErrors.Internal(err, message)
}

// passthrough keeps typed errors produced deeper in a transaction.
func passthrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func parseDate(value, field string) (time.Time, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, invalid(fmt.Sprintf("fecha inválida en %s", field))
	}
	return t, nil
}

func parseOptionalDate(value *string, field string) (*time.Time, error) {
	t, err := models.ParseOptionalDate(value)
	if err != nil {
		return nil, invalid(fmt.Sprintf("fecha inválida en %s", field))
	}
	return t, nil
}

func sequenceCode(prefix string, n int64) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

func audit(meta models.RequestMeta, action, module, entityID, description string, before, after interface{}) models.AuditEntry {
	return models.AuditEntry{
		Actor:       meta.Principal,
		Action:      action,
		Module:      module,
		EntityID:    entityID,
		Description: description,
		Old:         before,
		New:         after,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Outcome:     models.OutcomeSuccess,
	}
}
