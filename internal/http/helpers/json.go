package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

// MaxBodyBytes es el límite por defecto de un body JSON.
const MaxBodyBytes int64 = 1 << 20

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadBody lee el body completo respetando el límite. Acepta Content-Type
// vacío (clientes de línea de comando) pero rechaza tipos no JSON.
// Un body vacío retorna nil sin error.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) (json.RawMessage, error) {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "application/json") {
		return nil, httperrors.ErrUnsupportedMedia
	}
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, httperrors.ErrPayloadTooLarge.WithCause(err)
		}
		return nil, httperrors.ErrBadRequest.WithCause(err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, httperrors.ErrInvalidJSON
	}
	return raw, nil
}

// DecodeStrict decodifica raw en v rechazando campos desconocidos y
// cualquier dato después del primer valor.
func DecodeStrict(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return httperrors.ErrInvalidJSON.WithDetail("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return httperrors.ErrInvalidJSON.WithDetail(err.Error()).WithCause(err)
	}
	if dec.More() {
		return httperrors.ErrInvalidJSON.WithDetail("trailing data after JSON value")
	}
	return nil
}

// DecodeJSON es ReadBody + DecodeStrict.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	raw, err := ReadBody(w, r, limit)
	if err != nil {
		return err
	}
	return DecodeStrict(raw, v)
}
