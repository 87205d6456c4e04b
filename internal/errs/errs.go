package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials — сервер отклонил login/register.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthExpired — 401 на аутентифицированном запросе; сессия уже сброшена.
	ErrAuthExpired = errors.New("session expired")
	// ErrIllegalTransition — действие несовместимо с текущим статусом тикета.
	ErrIllegalTransition = errors.New("illegal ticket transition")
	ErrValidation        = errors.New("validation error")
	// ErrTransientNetwork — сетевой сбой, который имеет смысл повторить.
	ErrTransientNetwork = errors.New("transient network error")
	ErrServer           = errors.New("server error")
	ErrForbidden        = errors.New("forbidden")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrBadRequest       = errors.New("bad request")
)

// ValidationError describes input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is a shorthand for &ValidationError{Field: field, Reason: reason}.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
