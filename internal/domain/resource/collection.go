package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection implementa Provider[E] sobre un Documents. Es la base de todos
// los sub-recursos de los providers de dominio: asigna ids, tenant y
// auditoría, aplica el soft-delete y convierte documentos a entidades.
type Collection[E any] struct {
	name  string
	docs  Documents
	now   func() time.Time
	newID func() string
}

// CollectionOption ajusta una Collection (reloj e ids en tests).
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	now   func() time.Time
	newID func() string
}

// WithClock reemplaza el reloj.
func WithClock(now func() time.Time) CollectionOption {
	return func(o *collectionOptions) { o.now = now }
}

// WithIDs reemplaza el generador de ids.
func WithIDs(gen func() string) CollectionOption {
	return func(o *collectionOptions) { o.newID = gen }
}

// NewCollection crea el provider genérico de una colección.
func NewCollection[E any](name string, docs Documents, opts ...CollectionOption) *Collection[E] {
	o := collectionOptions{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[E]{name: name, docs: docs, now: o.now, newID: o.newID}
}

// Name retorna el nombre de la colección.
func (c *Collection[E]) Name() string { return c.name }

// Documents expone el backend para providers con acciones propias.
func (c *Collection[E]) Documents() Documents { return c.docs }

func (c *Collection[E]) Count(ctx context.Context, meta Metadata, f QueryFilter) (int64, error) {
	return c.docs.Count(ctx, meta.Tenant, f.Query)
}

func (c *Collection[E]) Create(ctx context.Context, meta Metadata, item *E) (*E, error) {
	doc, err := c.prepare(meta, item)
	if err != nil {
		return nil, err
	}
	if err := c.docs.Insert(ctx, meta.Tenant, doc); err != nil {
		return nil, fmt.Errorf("%s create: %w", c.name, err)
	}
	return FromDocument[E](doc)
}

func (c *Collection[E]) CreateBulk(ctx context.Context, meta Metadata, items []*E) ([]*E, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", ErrInvalidInput)
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := c.prepare(meta, item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := c.docs.Insert(ctx, meta.Tenant, docs...); err != nil {
		return nil, fmt.Errorf("%s create bulk: %w", c.name, err)
	}
	return fromDocuments[E](docs)
}

func (c *Collection[E]) Find(ctx context.Context, meta Metadata, f Filter) ([]*E, error) {
	docs, err := c.docs.Find(ctx, meta.Tenant, f)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i] = Project(docs[i], f.Projection)
	}
	return fromDocuments[E](docs)
}

func (c *Collection[E]) Cursor(ctx context.Context, meta Metadata, f Filter) (*Stream[E], error) {
	return NewStream(ctx, func(ctx context.Context, emit func(*E) error) error {
		return c.docs.Iterate(ctx, meta.Tenant, f, func(doc Document) error {
			e, err := FromDocument[E](Project(doc, f.Projection))
			if err != nil {
				return err
			}
			return emit(e)
		})
	}), nil
}

func (c *Collection[E]) FindOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error) {
	doc, err := c.docs.FindOne(ctx, meta.Tenant, f.Query, Live)
	if err != nil {
		return nil, err
	}
	return FromDocument[E](Project(doc, f.Projection))
}

func (c *Collection[E]) DeleteOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error) {
	doc, err := c.docs.UpdateOne(ctx, meta.Tenant, f.Query, Live, func(d Document) (Document, error) {
		ts := Timestamp(c.now())
		d[KeyDeletedAt] = ts
		d[KeyDeletedBy] = meta.Subject
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return FromDocument[E](doc)
}

func (c *Collection[E]) RestoreOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error) {
	doc, err := c.docs.UpdateOne(ctx, meta.Tenant, f.Query, Deleted, func(d Document) (Document, error) {
		delete(d, KeyDeletedAt)
		delete(d, KeyDeletedBy)
		d[KeyRestoredAt] = Timestamp(c.now())
		d[KeyRestoredBy] = meta.Subject
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return FromDocument[E](doc)
}

func (c *Collection[E]) DestroyOne(ctx context.Context, meta Metadata, f FilterOne) (*E, error) {
	doc, err := c.docs.DeleteOne(ctx, meta.Tenant, f.Query, Any)
	if err != nil {
		return nil, err
	}
	return FromDocument[E](doc)
}

func (c *Collection[E]) UpdateOne(ctx context.Context, meta Metadata, f FilterOne, patch Patch) (*E, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}
	doc, err := c.docs.UpdateOne(ctx, meta.Tenant, f.Query, Live, c.applier(meta, patch))
	if err != nil {
		return nil, err
	}
	return FromDocument[E](Project(doc, f.Projection))
}

func (c *Collection[E]) UpdateBulk(ctx context.Context, meta Metadata, f QueryFilter, patch Patch) (int64, error) {
	if err := checkPatch(patch); err != nil {
		return 0, err
	}
	return c.docs.UpdateMany(ctx, meta.Tenant, f.Query, c.applier(meta, patch))
}

// Modify aplica mutate sobre una entidad viva dentro de la escritura atómica
// del backend. Lo usan las acciones de dominio (payment, send, commit, ...).
func (c *Collection[E]) Modify(ctx context.Context, meta Metadata, q Query, mutate func(*E) error) (*E, error) {
	doc, err := c.docs.UpdateOne(ctx, meta.Tenant, q, Live, func(d Document) (Document, error) {
		e, err := FromDocument[E](d)
		if err != nil {
			return nil, err
		}
		if err := mutate(e); err != nil {
			return nil, err
		}
		next, err := ToDocument(e)
		if err != nil {
			return nil, err
		}
		// la identidad y la auditoría siguen siendo las del documento original
		for k := range protectedKeys {
			if v, ok := d[k]; ok {
				next[k] = v
			} else {
				delete(next, k)
			}
		}
		next[KeyUpdatedAt] = Timestamp(c.now())
		next[KeyUpdatedBy] = meta.Subject
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return FromDocument[E](doc)
}

func (c *Collection[E]) prepare(meta Metadata, item *E) (Document, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	doc, err := ToDocument(item)
	if err != nil {
		return nil, err
	}
	owner := doc.String(KeyOwner)
	for k := range protectedKeys {
		delete(doc, k)
	}
	if owner == "" {
		owner = meta.Subject
	}
	ts := Timestamp(c.now())
	doc[KeyID] = c.newID()
	doc[KeyTenant] = meta.Tenant
	if owner != "" {
		doc[KeyOwner] = owner
	}
	doc[KeyCreatedAt] = ts
	doc[KeyUpdatedAt] = ts
	if meta.Subject != "" {
		doc[KeyCreatedBy] = meta.Subject
	}
	return doc, nil
}

func (c *Collection[E]) applier(meta Metadata, patch Patch) Mutator {
	return func(d Document) (Document, error) {
		for k, v := range patch {
			if v == nil {
				delete(d, k)
				continue
			}
			d[k] = v
		}
		// el documento resultante tiene que seguir siendo un E válido
		if _, err := FromDocument[E](d); err != nil {
			return nil, err
		}
		d[KeyUpdatedAt] = Timestamp(c.now())
		d[KeyUpdatedBy] = meta.Subject
		return d, nil
	}
}

func checkPatch(patch Patch) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: empty update", ErrInvalidInput)
	}
	for k := range patch {
		if IsProtected(k) {
			return fmt.Errorf("%w: field %q is read-only", ErrInvalidInput, k)
		}
	}
	return nil
}

// Project deja sólo las claves pedidas (más el id). Sin proyección retorna
// el documento tal cual.
func Project(doc Document, fields []string) Document {
	if len(fields) == 0 || doc == nil {
		return doc
	}
	out := Document{KeyID: doc[KeyID]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func fromDocuments[E any](docs []Document) ([]*E, error) {
	out := make([]*E, 0, len(docs))
	for _, d := range docs {
		e, err := FromDocument[E](d)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
