package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("no encontrado")
	ErrDuplicateUsername  = errors.New("el nombre de usuario ya existe")
	ErrNotVerified        = errors.New("usuario no verificado")
	ErrInvalidCredentials = errors.New("usuario o contraseña incorrectos")
	ErrForbidden          = errors.New("acción no permitida para este rol")
)

// Field classes named by a ValidationError.
const (
	FieldClassUbicacion  = "ubicación"
	FieldClassTipo       = "tipo de intervención"
	FieldClassFecha      = "fecha"
	FieldClassUsuario    = "usuario"
	FieldClassJerarquia  = "jerarquía geográfica"
	FieldClassFormulario = "formulario"
)

// ValidationError reports missing or malformed input. Field names the class of
// field that failed, not the individual field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field class.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RemoteWriteError is returned when the remote half of a dual-write fails after the
// local half succeeded. The local copy is left in place.
type RemoteWriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("escritura remota fallida (%s %s): %v", e.Op, e.ID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
