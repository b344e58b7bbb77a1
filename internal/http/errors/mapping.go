package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

// FromError traduce cualquier error a AppError. Los sentinelas del dominio
// se reconocen con errors.Is aunque vengan envueltos.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	var maxBytes *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxBytes):
		return ErrPayloadTooLarge.WithCause(err)
	case stderrors.Is(err, resource.ErrNotFound):
		return ErrNotFound.WithCause(err)
	case stderrors.Is(err, resource.ErrInvalidInput):
		return ErrValidation.WithDetail(detail(err, resource.ErrInvalidInput)).WithCause(err)
	case stderrors.Is(err, resource.ErrConflict):
		return ErrConflict.WithCause(err)
	case stderrors.Is(err, resource.ErrWrongState):
		return ErrWrongState.WithDetail(detail(err, resource.ErrWrongState)).WithCause(err)
	case stderrors.Is(err, resource.ErrUnprocessable):
		return ErrUnprocessable.WithDetail(detail(err, resource.ErrUnprocessable)).WithCause(err)
	case stderrors.Is(err, resource.ErrUnavailable):
		return ErrServiceUnavailable.WithCause(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// detail expone el mensaje envuelto sin el nombre del sentinela; los
// errores de validación y de estado son seguros para el cliente.
func detail(err, sentinel error) string {
	msg := err.Error()
	suffix := sentinel.Error()
	if msg == suffix {
		return ""
	}
	return msg
}

// GraphQLExtensions retorna las extensiones de una entrada errors[].
func (e *AppError) GraphQLExtensions() map[string]any {
	ext := map[string]any{"code": e.Code, "status": e.HTTPStatus}
	if e.Detail != "" {
		ext["detail"] = e.Detail
	}
	return ext
}
