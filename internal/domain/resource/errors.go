package resource

import "errors"

// Errores sentinela de la capa de datos. Los transportes los traducen con
// errors.Is (ver internal/http/errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	// ErrWrongState: la entidad existe pero su estado no admite la operación
	// (saga ya confirmada, factura pagada, ...).
	ErrWrongState = errors.New("wrong state")
	// ErrUnprocessable: regla de negocio violada con input bien formado.
	ErrUnprocessable = errors.New("unprocessable")
	ErrUnavailable   = errors.New("unavailable")
)
