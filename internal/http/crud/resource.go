package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/wenex-org/platform-sub000/internal/cache"
	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	"github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/store"
	"github.com/wenex-org/platform-sub000/internal/validation"
)

// Options son las dependencias compartidas por todos los módulos.
type Options struct {
	Cache    cache.Client
	CacheTTL time.Duration
	MaxBody  int64
}

// Resource es un módulo listo para montar.
type Resource[E any] struct {
	def   Definition[E]
	ctrl  *resource.Controller[E]
	cache cache.Client
	opts  Options
	ops   []*Operation
}

var _ Module = (*Resource[struct{}])(nil)

// New arma el controller (con cache si el módulo lo pide) y las operaciones.
func New[E any](def Definition[E], opts Options) *Resource[E] {
	ttl := def.CacheTTL
	if ttl <= 0 {
		ttl = opts.CacheTTL
	}
	provider := def.Provider
	if def.CacheKey != "" && opts.Cache != nil {
		provider = cache.Wrap(provider, opts.Cache, def.CacheKey, ttl)
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = helpers.MaxBodyBytes
	}
	r := &Resource[E]{
		def:   def,
		ctrl:  resource.NewController(provider),
		cache: opts.Cache,
		opts:  opts,
	}
	r.ops = r.build()
	return r
}

func (r *Resource[E]) Name() string              { return r.def.Name }
func (r *Resource[E]) Domain() string            { return r.def.Domain }
func (r *Resource[E]) Path() string              { return r.def.Path }
func (r *Resource[E]) Entity() string            { return r.def.Entity }
func (r *Resource[E]) Plural() string            { return r.def.plural() }
func (r *Resource[E]) Resource() policy.Resource { return r.def.Resource() }
func (r *Resource[E]) Operations() []*Operation  { return r.ops }

// Controller expone el controller para acciones que reusan operaciones
// canónicas.
func (r *Resource[E]) Controller() *resource.Controller[E] { return r.ctrl }

// Flush invalida las lecturas cacheadas del módulo para tenant.
func (r *Resource[E]) Flush(ctx context.Context, tenant string) error {
	if r.def.CacheKey == "" || r.cache == nil {
		return nil
	}
	return cache.Flush(ctx, r.cache, r.def.CacheKey, tenant)
}

// Operation busca una operación por nombre.
func (r *Resource[E]) Operation(name string) (*Operation, bool) {
	for _, op := range r.ops {
		if op.Name == name {
			return op, true
		}
	}
	return nil, false
}

// ─── construcción ───

func (r *Resource[E]) build() []*Operation {
	disabled := make(map[string]bool, len(r.def.Disabled))
	for _, n := range r.def.Disabled {
		disabled[n] = true
	}
	entity, plural := r.def.Entity, r.def.plural()

	canonical := map[string]*Operation{
		OpCount:      {Method: http.MethodGet, Pattern: "/count", Field: "count" + plural, Args: ArgFilter, invoke: r.count},
		OpCreate:     {Method: http.MethodPost, Pattern: "/", Field: "create" + entity, Mutation: true, Status: http.StatusCreated, Args: ArgData, invoke: r.create},
		OpCreateBulk: {Method: http.MethodPost, Pattern: "/bulk", Field: "create" + plural, Mutation: true, Status: http.StatusCreated, Args: ArgItems, invoke: r.createBulk},
		OpFind:       {Method: http.MethodGet, Pattern: "/", Field: "find" + plural, Args: ArgFilter, invoke: r.find},
		OpCursor:     {Method: http.MethodGet, Pattern: "/cursor", Args: ArgFilter, Stream: true},
		OpFindOne:    {Method: http.MethodGet, Pattern: "/{id}", Field: "find" + entity + "ById", Args: ArgID | ArgFilter, invoke: r.findOne},
		OpDeleteOne:  {Method: http.MethodDelete, Pattern: "/{id}", Field: "delete" + entity + "ById", Mutation: true, Args: ArgID, invoke: r.deleteOne},
		OpRestoreOne: {Method: http.MethodPut, Pattern: "/{id}/restore", Field: "restore" + entity + "ById", Mutation: true, Args: ArgID, invoke: r.restoreOne},
		OpDestroyOne: {Method: http.MethodDelete, Pattern: "/{id}/destroy", Field: "destroy" + entity + "ById", Mutation: true, Args: ArgID, invoke: r.destroyOne},
		OpUpdateBulk: {Method: http.MethodPatch, Pattern: "/bulk", Field: "update" + plural, Mutation: true, Args: ArgBodyQuery | ArgFilter | ArgData, invoke: r.updateBulk},
		OpUpdateOne:  {Method: http.MethodPatch, Pattern: "/{id}", Field: "update" + entity + "ById", Mutation: true, Args: ArgID | ArgData, invoke: r.updateOne},
	}

	res := r.def.Resource()
	ops := make([]*Operation, 0, len(canonical)+len(r.def.Actions))
	for _, name := range Canonical {
		if disabled[name] {
			continue
		}
		op := canonical[name]
		action := ActionOf(name)
		op.Module = r.def.Name
		op.Name = name
		op.Domain = r.def.Domain
		op.Pair = policy.Pair{Action: action, Resource: res}
		op.Level = policy.LevelOf(action)
		op.Write = action != policy.Read
		if op.Status == 0 {
			op.Status = http.StatusOK
		}
		if op.Stream {
			op.serve = r.serveCursor
		}
		ops = append(ops, op)
	}
	for _, a := range r.def.Actions {
		ops = append(ops, r.action(a))
	}
	return ops
}

func (r *Resource[E]) action(a Action) *Operation {
	level := a.Level
	if level == 0 {
		level = policy.LevelOf(a.Verb)
	}
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	handle := a.Handle
	op := &Operation{
		Module:   r.def.Name,
		Name:     a.Name,
		Method:   a.Method,
		Pattern:  a.Pattern,
		Field:    a.Field,
		Mutation: a.Write,
		Pair:     policy.Pair{Action: a.Verb, Resource: r.def.Resource()},
		Domain:   r.def.Domain,
		Level:    level,
		Status:   status,
		Args:     a.Args,
		Params:   a.Params,
		Write:    a.Write,
	}
	op.invoke = func(ctx context.Context, in Input) (any, error) {
		meta, err := metadata(ctx)
		if err != nil {
			return nil, err
		}
		out, err := handle(ctx, meta, in)
		if err != nil {
			return nil, err
		}
		if a.Write {
			if in.ID == "" {
				if v, ok := out.(interface{ IDs() []string }); ok {
					middlewares.AuditIDs(ctx, v.IDs()...)
				}
			}
			r.flush(ctx, meta)
		}
		return out, nil
	}
	return op
}

// flush invalida el cache tras una acción propia; las operaciones canónicas
// ya lo hacen en el decorador.
func (r *Resource[E]) flush(ctx context.Context, meta resource.Metadata) {
	if _, inSaga := resource.SessionFrom(ctx); inSaga {
		return
	}
	_ = r.Flush(ctx, meta.Tenant)
}

// ─── helpers de autoridad ───

func metadata(ctx context.Context) (resource.Metadata, error) {
	meta, ok := resource.MetadataFrom(ctx)
	if !ok {
		return meta, httperrors.ErrUnauthorized.WithDetail("no metadata in context")
	}
	return meta, nil
}

// OwnedQuery restringe q al sujeto cuando el permiso es ":own".
func OwnedQuery(ctx context.Context, q resource.Query) resource.Query {
	if p, ok := policy.PermissionFrom(ctx); ok && p.Restricted() {
		return q.Refine(resource.KeyOwner, p.Subject)
	}
	return q
}

// ownedFilter aplica OwnedQuery a f y, mientras Visible revisa el resultado,
// mantiene owner en la proyección. El segundo retorno indica si hay que
// limpiar owner antes de responder.
func ownedFilter(ctx context.Context, f resource.Filter) (resource.Filter, bool) {
	p, ok := policy.PermissionFrom(ctx)
	if !ok || !p.Restricted() {
		return f, false
	}
	f.Query = f.Query.Refine(resource.KeyOwner, p.Subject)
	if len(f.Projection) == 0 || slices.Contains(f.Projection, resource.KeyOwner) {
		return f, false
	}
	f.Projection = append(slices.Clone(f.Projection), resource.KeyOwner)
	return f, true
}

// stripOwner borra el owner que ownedFilter agregó a la proyección.
func stripOwner[E any](e *E) {
	if c := resource.CoreOf(e); c != nil {
		c.Owner = ""
	}
}

// Visible retorna el filtro de entidades que el caller puede ver, o nil si
// las ve todas.
func Visible[E any](ctx context.Context) func(*E) bool {
	p, ok := policy.PermissionFrom(ctx)
	if !ok || !p.Restricted() {
		return nil
	}
	return func(e *E) bool {
		c := resource.CoreOf(e)
		return c != nil && p.Allows(c.Owner)
	}
}

func (r *Resource[E]) shape(e *E) any {
	if r.def.Shape != nil && e != nil {
		return r.def.Shape(e)
	}
	return e
}

func (r *Resource[E]) data(e *E) any {
	if r.def.Shape == nil {
		return resource.NewData(e)
	}
	v := r.shape(e)
	return resource.DataSerializer[any]{Data: &v}
}

func (r *Resource[E]) items(items []*E, p resource.Pagination) any {
	if r.def.Shape == nil {
		return resource.NewItems(items, p)
	}
	shaped := make([]*any, 0, len(items))
	for _, e := range items {
		v := r.shape(e)
		shaped = append(shaped, &v)
	}
	return resource.NewItems(shaped, p)
}

// ─── payloads ───

// decodeItem decodifica y valida el payload de una creación.
func (r *Resource[E]) decodeItem(ctx context.Context, raw json.RawMessage) (*E, error) {
	item := new(E)
	if err := helpers.DecodeStrict(raw, item); err != nil {
		return nil, err
	}
	validate := r.def.Validate
	if validate == nil {
		validate = func(e *E) error { return validation.Struct(e) }
	}
	if err := validate(item); err != nil {
		return nil, err
	}
	// un ":own" sólo crea entidades propias
	if p, ok := policy.PermissionFrom(ctx); ok && p.Restricted() {
		if c := resource.CoreOf(item); c != nil {
			c.Owner = ""
		}
	}
	return item, nil
}

// decodePatch valida un update parcial contra el tipo de la entidad.
func (r *Resource[E]) decodePatch(raw json.RawMessage) (resource.Patch, error) {
	var patch resource.Patch
	if err := helpers.DecodeStrict(raw, &patch); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty update", resource.ErrInvalidInput)
	}
	typed := new(E)
	if err := helpers.DecodeStrict(raw, typed); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(patch))
	for k, v := range patch {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if err := validation.Partial(typed, keys); err != nil {
		return nil, err
	}
	return patch, nil
}

func identity(in Input) (string, error) {
	if in.ID == "" {
		return "", httperrors.ErrMissingID
	}
	return in.ID, nil
}

// ─── operaciones canónicas ───

func (r *Resource[E]) count(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	n, err := r.ctrl.Count(ctx, meta, resource.QueryFilter{Query: OwnedQuery(ctx, in.Filter.Query)})
	if err != nil {
		return nil, err
	}
	return resource.NewTotal(n), nil
}

func (r *Resource[E]) create(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	item, err := r.decodeItem(ctx, in.Data)
	if err != nil {
		return nil, err
	}
	out, err := r.ctrl.Create(ctx, meta, item)
	if err != nil {
		return nil, err
	}
	middlewares.AuditIDs(ctx, resource.NewData(out).IDs()...)
	return r.data(out), nil
}

func (r *Resource[E]) createBulk(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", resource.ErrInvalidInput)
	}
	items := make([]*E, 0, len(in.Items))
	for i, raw := range in.Items {
		item, err := r.decodeItem(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	out, err := r.ctrl.CreateBulk(ctx, meta, items)
	if err != nil {
		return nil, err
	}
	middlewares.AuditIDs(ctx, resource.NewItems(out, resource.Pagination{}).IDs()...)
	return r.items(out, resource.Pagination{Limit: int64(len(out))}), nil
}

func (r *Resource[E]) find(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	f, strip := ownedFilter(ctx, helpers.WithPageDefaults(in.Filter))
	out, err := r.ctrl.Find(ctx, meta, f)
	if err != nil {
		return nil, err
	}
	if keep := Visible[E](ctx); keep != nil {
		kept := out[:0]
		for _, e := range out {
			if keep(e) {
				if strip {
					stripOwner(e)
				}
				kept = append(kept, e)
			}
		}
		out = kept
	}
	return r.items(out, f.Pagination), nil
}

func (r *Resource[E]) filterOne(ctx context.Context, in Input) resource.FilterOne {
	return resource.FilterOne{Query: OwnedQuery(ctx, in.Filter.Query), Projection: in.Filter.Projection}
}

func (r *Resource[E]) findOne(ctx context.Context, in Input) (any, error) {
	return r.single(ctx, in, r.ctrl.FindOne)
}

func (r *Resource[E]) deleteOne(ctx context.Context, in Input) (any, error) {
	return r.single(ctx, in, r.ctrl.DeleteOne)
}

func (r *Resource[E]) restoreOne(ctx context.Context, in Input) (any, error) {
	return r.single(ctx, in, r.ctrl.RestoreOne)
}

func (r *Resource[E]) destroyOne(ctx context.Context, in Input) (any, error) {
	return r.single(ctx, in, r.ctrl.DestroyOne)
}

type singleFunc[E any] func(ctx context.Context, meta resource.Metadata, id, ref string, f resource.FilterOne) (*E, error)

func (r *Resource[E]) single(ctx context.Context, in Input, fn singleFunc[E]) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	id, err := identity(in)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, meta, id, in.Ref, r.filterOne(ctx, in))
	if err != nil {
		return nil, err
	}
	return r.data(out), nil
}

func (r *Resource[E]) updateOne(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	id, err := identity(in)
	if err != nil {
		return nil, err
	}
	patch, err := r.decodePatch(in.Data)
	if err != nil {
		return nil, err
	}
	out, err := r.ctrl.UpdateOne(ctx, meta, id, in.Ref, r.filterOne(ctx, in), patch)
	if err != nil {
		return nil, err
	}
	return r.data(out), nil
}

func (r *Resource[E]) updateBulk(ctx context.Context, in Input) (any, error) {
	meta, err := metadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.ValidateQuery(in.Filter.Query); err != nil {
		return nil, httperrors.ErrInvalidFilter.WithDetail(err.Error())
	}
	patch, err := r.decodePatch(in.Data)
	if err != nil {
		return nil, err
	}
	q := OwnedQuery(ctx, in.Filter.Query)
	n, err := r.ctrl.UpdateBulk(ctx, meta, resource.QueryFilter{Query: q}, patch)
	if err != nil {
		return nil, err
	}
	// sin ids: el evento lleva el filtro aplicado
	if raw, err := json.Marshal(q); err == nil {
		middlewares.AuditIDs(ctx, "filter:"+string(raw))
	}
	return resource.NewTotal(n), nil
}
