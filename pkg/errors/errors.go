package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned errors still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Validation wraps a payload validation failure.
func Validation(err error, message string) *Error {
	return Wrap(err, ErrValidation.Code, ErrValidation.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "usuario o contraseña incorrectos")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "la cuenta está inactiva")
	ErrAccountLocked      = New("ACCOUNT_LOCKED", http.StatusLocked, "la cuenta está bloqueada temporalmente")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "recurso no encontrado")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "no tiene permisos para realizar esta acción")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "no autenticado")
	ErrSessionExpired     = New("SESSION_EXPIRED", http.StatusUnauthorized, "la sesión ha expirado")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflicto con el estado actual del recurso")
	ErrCapacityExceeded   = New("CAPACITY_EXCEEDED", http.StatusConflict, "no hay cupos disponibles")
	ErrInvalidTransition  = New("INVALID_TRANSITION", http.StatusConflict, "transición de estado no permitida")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "no se cumple una condición previa")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "datos inválidos")
	ErrUpload             = New("UPLOAD_ERROR", http.StatusBadRequest, "archivo inválido")
	ErrUploadFailed       = New("UPLOAD_FAILED", http.StatusInternalServerError, "no se pudo almacenar el archivo")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "demasiadas solicitudes, intente más tarde")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "error interno del servidor")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
