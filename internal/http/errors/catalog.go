package errors

import "net/http"

// ─── 400 ───

var (
	ErrBadRequest       = New(http.StatusBadRequest, "BAD_REQUEST", "La solicitud no es válida.")
	ErrInvalidJSON      = New(http.StatusBadRequest, "INVALID_JSON", "El cuerpo de la solicitud no es un JSON válido.")
	ErrInvalidFilter    = New(http.StatusBadRequest, "INVALID_FILTER", "El filtro de la consulta no es válido.")
	ErrValidation       = New(http.StatusBadRequest, "VALIDATION_FAILED", "Los datos enviados no pasaron la validación.")
	ErrMissingID        = New(http.StatusBadRequest, "MISSING_ID", "Falta el identificador del recurso.")
	ErrPayloadTooLarge  = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "El cuerpo de la solicitud es demasiado grande.")
	ErrUnsupportedMedia = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Se esperaba Content-Type application/json.")
)

// ─── 401 / 403 ───

var (
	ErrUnauthorized       = New(http.StatusUnauthorized, "UNAUTHORIZED", "Se requiere autenticación.")
	ErrTokenMissing       = New(http.StatusUnauthorized, "TOKEN_MISSING", "Falta el token Bearer.")
	ErrTokenInvalid       = New(http.StatusUnauthorized, "TOKEN_INVALID", "El token no es válido o expiró.")
	ErrForbidden          = New(http.StatusForbidden, "FORBIDDEN", "No tiene permisos para esta operación.")
	ErrInsufficientScopes = New(http.StatusForbidden, "INSUFFICIENT_SCOPES", "El token no tiene los scopes requeridos.")
	ErrPolicyDenied       = New(http.StatusForbidden, "POLICY_DENIED", "La política de acceso no permite esta operación.")
)

// ─── 404 / 405 / 409 / 422 / 429 ───

var (
	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "El recurso solicitado no existe.")
	ErrMethodNotAllowed  = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método no permitido.")
	ErrConflict          = New(http.StatusConflict, "CONFLICT", "El recurso ya existe o está en conflicto.")
	ErrWrongState        = New(http.StatusConflict, "WRONG_STATE", "El estado actual del recurso no admite la operación.")
	ErrUnprocessable     = New(http.StatusUnprocessableEntity, "UNPROCESSABLE", "La operación viola una regla de negocio.")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Demasiadas solicitudes. Intente más tarde.")
)

// ─── 5xx ───

var (
	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_ERROR", "Error interno del servidor.")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Servicio no disponible temporalmente.")
	ErrTimeout             = New(http.StatusGatewayTimeout, "TIMEOUT", "La operación excedió el tiempo máximo.")
)
