package models

import "errors"

// ErrorCode classifies a failed Result.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeDuplicateUsername  ErrorCode = "DUPLICATE_USERNAME"
	CodeNotVerified        ErrorCode = "NOT_VERIFIED"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeRemoteWriteFailure ErrorCode = "REMOTE_WRITE_FAILURE"
	CodeIO                 ErrorCode = "IO_ERROR"
)

// MsgConnection is shown for any I/O failure.
const MsgConnection = "Error de conexión. Verifique su conexión e intente nuevamente."

// Result is the uniform shape every controller operation returns.
type Result[T any] struct {
	OK    bool      `json:"ok"`
	Data  T         `json:"data"`
	Error string    `json:"error,omitempty"`
	Code  ErrorCode `json:"code,omitempty"`
}

// Ok wraps a successful payload.
func Ok[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

// Fail translates err into a failed Result. Unknown errors are treated as I/O failures.
func Fail[T any](err error) Result[T] {
	code, msg := Classify(err)
	return Result[T]{OK: false, Error: msg, Code: code}
}

// Classify maps an error from the taxonomy onto its code and user-facing message.
func Classify(err error) (ErrorCode, string) {
	var ve *ValidationError
	var rw *RemoteWriteError
	switch {
	case errors.As(err, &ve):
		return CodeValidation, ve.Error()
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, err.Error()
	case errors.Is(err, ErrDuplicateUsername):
		return CodeDuplicateUsername, ErrDuplicateUsername.Error()
	case errors.Is(err, ErrNotVerified):
		return CodeNotVerified, "Su cuenta aún no ha sido verificada por un administrador."
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials, ErrInvalidCredentials.Error()
	case errors.Is(err, ErrForbidden):
		return CodeForbidden, ErrForbidden.Error()
	case errors.As(err, &rw):
		return CodeRemoteWriteFailure, "No se pudo guardar en el servidor. " + MsgConnection
	default:
		return CodeIO, MsgConnection
	}
}
