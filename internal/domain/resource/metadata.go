package resource

import (
	"context"
	"time"
)

// Metadata es el contexto ambiente de un request: tenant, identidad y
// trazas. Se crea una vez por request (middleware de auth) y viaja como
// primer argumento de cada operación. Nadie la modifica después.
type Metadata struct {
	RequestID string    `json:"request_id,omitempty"`
	Tenant    string    `json:"tenant,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	Perms     []string  `json:"perms,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	SagaID    string    `json:"saga_id,omitempty"`
	Time      time.Time `json:"time"`
}

type metadataKey struct{}

// WithMetadata guarda la metadata en el contexto.
func WithMetadata(ctx context.Context, m Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, m)
}

// MetadataFrom recupera la metadata del contexto.
func MetadataFrom(ctx context.Context) (Metadata, bool) {
	m, ok := ctx.Value(metadataKey{}).(Metadata)
	return m, ok
}

// Session es una sesión transaccional del backend (usada por sagas). El
// controller sólo la transporta; nunca la abre ni la cierra.
type Session interface {
	ID() string
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type sessionKey struct{}

// WithSession asocia una sesión al contexto para que el store la use.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom retorna la sesión del contexto, si hay una.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s != nil
}
