package resource

import "context"

// Controller es el contrato genérico de las once operaciones. No valida,
// no captura errores y no reintenta: resuelve {id, ref} y delega.
type Controller[E any] struct {
	provider Provider[E]
}

// NewController crea un controller sobre un sub-recurso de provider.
func NewController[E any](p Provider[E]) *Controller[E] {
	return &Controller[E]{provider: p}
}

func (c *Controller[E]) Count(ctx context.Context, meta Metadata, f QueryFilter) (int64, error) {
	return c.provider.Count(ctx, meta, f)
}

func (c *Controller[E]) Create(ctx context.Context, meta Metadata, item *E) (*E, error) {
	return c.provider.Create(ctx, meta, item)
}

func (c *Controller[E]) CreateBulk(ctx context.Context, meta Metadata, items []*E) ([]*E, error) {
	return c.provider.CreateBulk(ctx, meta, items)
}

func (c *Controller[E]) Find(ctx context.Context, meta Metadata, f Filter) ([]*E, error) {
	return c.provider.Find(ctx, meta, f)
}

func (c *Controller[E]) Cursor(ctx context.Context, meta Metadata, f Filter) (*Stream[E], error) {
	return c.provider.Cursor(ctx, meta, f)
}

func (c *Controller[E]) FindOne(ctx context.Context, meta Metadata, id, ref string, f FilterOne) (*E, error) {
	f.Query = MergeIdentity(f.Query, id, ref)
	return c.provider.FindOne(ctx, meta, f)
}

func (c *Controller[E]) DeleteOne(ctx context.Context, meta Metadata, id, ref string, f FilterOne) (*E, error) {
	f.Query = MergeIdentity(f.Query, id, ref)
	return c.provider.DeleteOne(ctx, meta, f)
}

func (c *Controller[E]) RestoreOne(ctx context.Context, meta Metadata, id, ref string, f FilterOne) (*E, error) {
	f.Query = MergeIdentity(f.Query, id, ref)
	return c.provider.RestoreOne(ctx, meta, f)
}

func (c *Controller[E]) DestroyOne(ctx context.Context, meta Metadata, id, ref string, f FilterOne) (*E, error) {
	f.Query = MergeIdentity(f.Query, id, ref)
	return c.provider.DestroyOne(ctx, meta, f)
}

func (c *Controller[E]) UpdateOne(ctx context.Context, meta Metadata, id, ref string, f FilterOne, patch Patch) (*E, error) {
	f.Query = MergeIdentity(f.Query, id, ref)
	return c.provider.UpdateOne(ctx, meta, f, patch)
}

func (c *Controller[E]) UpdateBulk(ctx context.Context, meta Metadata, f QueryFilter, patch Patch) (int64, error) {
	return c.provider.UpdateBulk(ctx, meta, f, patch)
}
