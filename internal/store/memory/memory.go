// Package memory implementa un backend de documentos en proceso. Se usa en
// desarrollo y en tests; soporta sesiones de saga con undo-log.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

func init() {
	store.Register("memory", func(ctx context.Context, cfg store.Config) (store.Backend, error) {
		return New(), nil
	})
}

type record struct {
	seq    int64
	tenant string
	doc    resource.Document
}

// Backend guarda todas las colecciones bajo un único lock; las sesiones
// pueden deshacer escrituras en varias colecciones a la vez.
type Backend struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]*collection
}

// New crea un backend vacío.
func New() *Backend {
	return &Backend{collections: map[string]*collection{}}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Collection(name string) resource.Documents {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &collection{b: b, name: name}
		b.collections[name] = c
	}
	return c
}

func (b *Backend) Ping(ctx context.Context) error { return nil }

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections = map[string]*collection{}
	return nil
}

// Begin abre una sesión. Las escrituras hechas con la sesión en el contexto
// se aplican al instante y se deshacen en Rollback.
func (b *Backend) Begin(ctx context.Context) (resource.Session, error) {
	return &session{id: uuid.NewString(), b: b}, nil
}

// ─── sesión ───

type session struct {
	id   string
	b    *Backend
	mu   sync.Mutex
	undo []func()
	done bool
}

func (s *session) ID() string { return s.id }

func (s *session) record(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, s.id)
	}
	s.undo = append(s.undo, fn)
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, s.id)
	}
	s.done = true
	s.undo = nil
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, s.id)
	}
	s.done = true
	undo := s.undo
	s.undo = nil
	s.mu.Unlock()

	// orden de locks: backend antes que sesión, igual que las escrituras
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

func (s *session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// ─── colección ───

type collection struct {
	b       *Backend
	name    string
	records []*record
}

// sessionFor retorna la sesión del contexto si pertenece a este backend.
func (c *collection) sessionFor(ctx context.Context) (*session, error) {
	s, ok := resource.SessionFrom(ctx)
	if !ok {
		return nil, nil
	}
	ms, ok := s.(*session)
	if !ok || ms.b != c.b {
		return nil, fmt.Errorf("%w: session %s belongs to another backend", resource.ErrInvalidInput, s.ID())
	}
	if ms.closed() {
		return nil, fmt.Errorf("%w: session %s is closed", resource.ErrWrongState, ms.id)
	}
	return ms, nil
}

func inScope(doc resource.Document, scope resource.Scope) bool {
	switch scope {
	case resource.Live:
		return !doc.IsDeleted()
	case resource.Deleted:
		return doc.IsDeleted()
	}
	return true
}

func (c *collection) matching(tenant string, q resource.Query, scope resource.Scope) []*record {
	var out []*record
	for _, r := range c.records {
		if r.tenant == tenant && inScope(r.doc, scope) && store.Match(r.doc, q) {
			out = append(out, r)
		}
	}
	return out
}

func (c *collection) indexOf(r *record) int {
	for i, x := range c.records {
		if x == r {
			return i
		}
	}
	return -1
}

func (c *collection) remove(r *record) {
	if i := c.indexOf(r); i >= 0 {
		c.records = append(c.records[:i], c.records[i+1:]...)
	}
}

// reinsert vuelve a poner un record en su posición por seq.
func (c *collection) reinsert(r *record) {
	i := sort.Search(len(c.records), func(i int) bool { return c.records[i].seq > r.seq })
	c.records = append(c.records, nil)
	copy(c.records[i+1:], c.records[i:])
	c.records[i] = r
}

func (c *collection) Count(ctx context.Context, tenant string, q resource.Query) (int64, error) {
	if err := store.ValidateQuery(q); err != nil {
		return 0, err
	}
	c.b.mu.RLock()
	defer c.b.mu.RUnlock()
	return int64(len(c.matching(tenant, q, resource.Live))), nil
}

func (c *collection) Insert(ctx context.Context, tenant string, docs ...resource.Document) error {
	sess, err := c.sessionFor(ctx)
	if err != nil {
		return err
	}
	return c.insert(sess, tenant, docs)
}

// insert corre con sess ya resuelta. La sesión puede cerrarse entre
// sessionFor y el lock; en ese caso se deshace lo agregado.
func (c *collection) insert(sess *session, tenant string, docs []resource.Document) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	seen := map[string]struct{}{}
	for _, r := range c.records {
		if r.tenant == tenant {
			seen[r.doc.String(resource.KeyID)] = struct{}{}
		}
	}
	for _, d := range docs {
		id := d.String(resource.KeyID)
		if id == "" {
			return fmt.Errorf("%w: document without id", resource.ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s/%s already exists", resource.ErrConflict, c.name, id)
		}
		seen[id] = struct{}{}
	}

	added := make([]*record, 0, len(docs))
	for _, d := range docs {
		c.b.seq++
		r := &record{seq: c.b.seq, tenant: tenant, doc: store.DeepCopy(d)}
		c.records = append(c.records, r)
		added = append(added, r)
	}
	undo := func() {
		for _, r := range added {
			c.remove(r)
		}
	}
	if sess != nil {
		if err := sess.record(undo); err != nil {
			undo()
			return err
		}
	}
	return nil
}

func (c *collection) snapshot(tenant string, f resource.Filter) ([]resource.Document, error) {
	if err := store.ValidateQuery(f.Query); err != nil {
		return nil, err
	}
	if err := store.ValidateSort(f.Sort); err != nil {
		return nil, err
	}
	c.b.mu.RLock()
	recs := c.matching(tenant, f.Query, resource.Live)
	docs := make([]resource.Document, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, store.DeepCopy(r.doc))
	}
	c.b.mu.RUnlock()

	store.SortDocuments(docs, f.Sort)
	return paginate(docs, f.Pagination), nil
}

func paginate(docs []resource.Document, p resource.Pagination) []resource.Document {
	if p.Skip > 0 {
		if p.Skip >= int64(len(docs)) {
			return []resource.Document{}
		}
		docs = docs[p.Skip:]
	}
	if p.Limit > 0 && p.Limit < int64(len(docs)) {
		docs = docs[:p.Limit]
	}
	return docs
}

func (c *collection) Find(ctx context.Context, tenant string, f resource.Filter) ([]resource.Document, error) {
	return c.snapshot(tenant, f)
}

func (c *collection) Iterate(ctx context.Context, tenant string, f resource.Filter, fn func(resource.Document) error) error {
	docs, err := c.snapshot(tenant, f)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection) FindOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope) (resource.Document, error) {
	if err := store.ValidateQuery(q); err != nil {
		return nil, err
	}
	c.b.mu.RLock()
	defer c.b.mu.RUnlock()
	recs := c.matching(tenant, q, scope)
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, resource.ErrNotFound)
	}
	return store.DeepCopy(recs[0].doc), nil
}

func (c *collection) UpdateOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope, mutate resource.Mutator) (resource.Document, error) {
	if err := store.ValidateQuery(q); err != nil {
		return nil, err
	}
	sess, err := c.sessionFor(ctx)
	if err != nil {
		return nil, err
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	recs := c.matching(tenant, q, scope)
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, resource.ErrNotFound)
	}
	r := recs[0]
	next, err := mutate(store.DeepCopy(r.doc))
	if err != nil {
		return nil, err
	}
	prev := r.doc
	r.doc = store.DeepCopy(next)
	if sess != nil {
		if err := sess.record(func() { r.doc = prev }); err != nil {
			r.doc = prev
			return nil, err
		}
	}
	return store.DeepCopy(r.doc), nil
}

func (c *collection) UpdateMany(ctx context.Context, tenant string, q resource.Query, mutate resource.Mutator) (int64, error) {
	if err := store.ValidateQuery(q); err != nil {
		return 0, err
	}
	sess, err := c.sessionFor(ctx)
	if err != nil {
		return 0, err
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	recs := c.matching(tenant, q, resource.Live)
	next := make([]resource.Document, len(recs))
	for i, r := range recs {
		d, err := mutate(store.DeepCopy(r.doc))
		if err != nil {
			// todo o nada: nada se escribió todavía
			return 0, err
		}
		next[i] = d
	}
	prev := make([]resource.Document, len(recs))
	for i, r := range recs {
		prev[i] = r.doc
		r.doc = next[i]
	}
	if sess != nil {
		if err := sess.record(func() {
			for i, r := range recs {
				r.doc = prev[i]
			}
		}); err != nil {
			for i, r := range recs {
				r.doc = prev[i]
			}
			return 0, err
		}
	}
	return int64(len(recs)), nil
}

func (c *collection) DeleteOne(ctx context.Context, tenant string, q resource.Query, scope resource.Scope) (resource.Document, error) {
	if err := store.ValidateQuery(q); err != nil {
		return nil, err
	}
	sess, err := c.sessionFor(ctx)
	if err != nil {
		return nil, err
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	recs := c.matching(tenant, q, scope)
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, resource.ErrNotFound)
	}
	r := recs[0]
	c.remove(r)
	if sess != nil {
		if err := sess.record(func() { c.reinsert(r) }); err != nil {
			c.reinsert(r)
			return nil, err
		}
	}
	return store.DeepCopy(r.doc), nil
}
