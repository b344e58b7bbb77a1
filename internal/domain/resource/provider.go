package resource

import "context"

// Patch es un update parcial por clave de documento.
type Patch = Document

// Provider es el sub-recurso de un provider de dominio (p.ej. Auth.Grants).
// Implementa la persistencia de las once operaciones canónicas.
type Provider[E any] interface {
	Count(ctx context.Context, meta Metadata, f QueryFilter) (int64, error)
	Create(ctx context.Context, meta Metadata, item *E) (*E, error)
	CreateBulk(ctx context.Context, meta Metadata, items []*E) ([]*E, error)
	Find(ctx context.Context, meta Metadata, f Filter) ([]*E, error)
	Cursor(ctx context.Context, meta Metadata, f Filter) (*Stream[E], error)
	FindOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error)
	DeleteOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error)
	RestoreOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error)
	DestroyOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error)
	UpdateOne(ctx context.Context, meta Metadata, f FilterOne, patch Patch) (*E, error)
	UpdateBulk(ctx context.Context, meta Metadata, f QueryFilter, patch Patch) (int64, error)
}

// Scope indica sobre qué documentos actúa una operación del store.
type Scope int

const (
	// Live: sólo documentos sin deleted_at.
	Live Scope = iota
	// Deleted: sólo documentos soft-deleted (restoreOne).
	Deleted
	// Any: ambos (destroyOne).
	Any
)

// Mutator transforma un documento dentro de una escritura atómica.
type Mutator func(Document) (Document, error)

// Documents es una colección de documentos de un backend (memory, postgres).
// Toda operación está acotada al tenant indicado.
type Documents interface {
	Count(ctx context.Context, tenant string, q Query) (int64, error)
	Insert(ctx context.Context, tenant string, docs ...Document) error
	Find(ctx context.Context, tenant string, f Filter) ([]Document, error)
	Iterate(ctx context.Context, tenant string, f Filter, fn func(Document) error) error
	FindOne(ctx context.Context, tenant string, q Query, scope Scope) (Document, error)
	UpdateOne(ctx context.Context, tenant string, q Query, scope Scope, mutate Mutator) (Document, error)
	UpdateMany(ctx context.Context, tenant string, q Query, mutate Mutator) (int64, error)
	DeleteOne(ctx context.Context, tenant string, q Query, scope Scope) (Document, error)
}
