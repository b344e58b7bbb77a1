package resource

import (
	"encoding/json"
	"fmt"
	"time"
)

// Core agrupa los campos comunes a toda entidad. Las entidades lo embeben
// para que el JSON quede plano:
//
//	type Grant struct {
//		resource.Core
//		Subject string `json:"subject"`
//	}
type Core struct {
	ID     string `json:"id,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Tenant string `json:"tenant,omitempty"`

	CreatedAt  *time.Time `json:"created_at,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	UpdatedBy  string     `json:"updated_by,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	DeletedBy  string     `json:"deleted_by,omitempty"`
	RestoredAt *time.Time `json:"restored_at,omitempty"`
	RestoredBy string     `json:"restored_by,omitempty"`
}

// Base permite acceder al Core desde código genérico vía interface.
func (c *Core) Base() *Core { return c }

// Deleted reporta si la entidad está soft-deleted.
func (c *Core) Deleted() bool { return c.DeletedAt != nil }

// Based lo implementa cualquier *E que embeba Core.
type Based interface {
	Base() *Core
}

// CoreOf retorna el Core de una entidad, o nil si no embebe Core.
func CoreOf(e any) *Core {
	if b, ok := e.(Based); ok {
		return b.Base()
	}
	return nil
}

// Claves de documento administradas por el store; el cliente no puede
// escribirlas directamente.
const (
	KeyID         = "id"
	KeyRef        = "ref"
	KeyOwner      = "owner"
	KeyTenant     = "tenant"
	KeyCreatedAt  = "created_at"
	KeyCreatedBy  = "created_by"
	KeyUpdatedAt  = "updated_at"
	KeyUpdatedBy  = "updated_by"
	KeyDeletedAt  = "deleted_at"
	KeyDeletedBy  = "deleted_by"
	KeyRestoredAt = "restored_at"
	KeyRestoredBy = "restored_by"
)

var protectedKeys = map[string]struct{}{
	KeyID: {}, KeyTenant: {}, KeyOwner: {},
	KeyCreatedAt: {}, KeyCreatedBy: {},
	KeyUpdatedAt: {}, KeyUpdatedBy: {},
	KeyDeletedAt: {}, KeyDeletedBy: {},
	KeyRestoredAt: {}, KeyRestoredBy: {},
}

// IsProtected reporta si key es una clave de auditoría/identidad.
func IsProtected(key string) bool {
	_, ok := protectedKeys[key]
	return ok
}

// Document es la representación genérica (JSON) de una entidad en el store.
type Document map[string]any

// Clone hace una copia superficial.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String lee una clave string; "" si no existe o no es string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// IsDeleted reporta si el documento tiene deleted_at.
func (d Document) IsDeleted() bool {
	v, ok := d[KeyDeletedAt]
	return ok && v != nil
}

// ToDocument convierte una entidad en Document vía JSON.
func ToDocument(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: entity must be a JSON object", ErrInvalidInput)
	}
	return doc, nil
}

// FromDocument decodifica un Document en una entidad nueva.
func FromDocument[E any](doc Document) (*E, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	e := new(E)
	if err := json.Unmarshal(b, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return e, nil
}

// Timestamp formatea t para guardarlo en un documento.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
