package essential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/metrics"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/store"
	"github.com/wenex-org/platform-sub000/internal/validation"
)

// Config limita los TTL de las sagas.
type Config struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// CloseHook corre después de que una saga termina (commit, abort o
// vencimiento); se usa para invalidar caches del tenant.
type CloseHook func(ctx context.Context, tenant string)

type held struct {
	tenant  string
	session resource.Session
	expires time.Time
}

// Sagas es el sub-recurso de sagas: la colección genérica más el registro
// de sesiones abiertas.
type Sagas struct {
	*resource.Collection[Saga]

	begin func(ctx context.Context) (resource.Session, error)
	cfg   Config
	now   func() time.Time

	mu    sync.Mutex
	open  map[string]*held
	hooks []CloseHook
}

// Provider del contexto essential.
type Provider struct {
	Sagas *Sagas
}

// NewProvider crea el provider sobre b. Las sesiones se abren con b.Begin.
func NewProvider(b store.Backend, cfg Config, opts ...resource.CollectionOption) *Provider {
	return newProvider(b, cfg, time.Now, opts...)
}

func newProvider(b store.Backend, cfg Config, now func() time.Time, opts ...resource.CollectionOption) *Provider {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Second
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 5 * time.Minute
	}
	return &Provider{Sagas: &Sagas{
		Collection: resource.NewCollection[Saga](SagasCollection, b.Collection(SagasCollection), opts...),
		begin:      b.Begin,
		cfg:        cfg,
		now:        now,
		open:       map[string]*held{},
	}}
}

// OnClose registra un hook de cierre.
func (s *Sagas) OnClose(h CloseHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Held retorna cuántas sesiones mantiene esta instancia.
func (s *Sagas) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// detached quita la sesión del contexto: el documento de control nunca se
// escribe dentro de la transacción que controla.
func detached(ctx context.Context) context.Context {
	return resource.WithSession(ctx, nil)
}

func (s *Sagas) log(ctx context.Context) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("sagas"))
}

// Start abre la sesión y crea la saga en estado started.
func (s *Sagas) Start(ctx context.Context, meta resource.Metadata, in StartInput) (*Saga, error) {
	ttl := s.cfg.DefaultTTL
	if in.TTL > 0 {
		ttl = time.Duration(in.TTL) * time.Second
	}
	if ttl > s.cfg.MaxTTL {
		return nil, fmt.Errorf("%w: ttl must be <= %s", resource.ErrInvalidInput, s.cfg.MaxTTL)
	}
	ctx = detached(ctx)

	sess, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("sagas: begin session: %w", err)
	}
	expires := s.now().Add(ttl).UTC()
	saga, err := s.Collection.Create(ctx, meta, &Saga{
		State:     StateStarted,
		TTL:       int64(ttl / time.Second),
		ExpiresAt: expires,
		Session:   sess.ID(),
	})
	if err != nil {
		_ = sess.Rollback(ctx)
		return nil, err
	}

	s.mu.Lock()
	s.open[saga.ID] = &held{tenant: meta.Tenant, session: sess, expires: expires}
	s.mu.Unlock()

	metrics.SagaTransitions.WithLabelValues(StateStarted).Inc()
	s.log(ctx).Info("saga started",
		logger.SagaID(saga.ID), logger.TenantID(meta.Tenant), logger.Int("ttl_s", int(saga.TTL)))
	return saga, nil
}

// Session cumple middlewares.SessionResolver: entrega la sesión de una saga
// abierta del tenant.
func (s *Sagas) Session(ctx context.Context, meta resource.Metadata, sagaID string) (resource.Session, error) {
	s.mu.Lock()
	h := s.open[sagaID]
	s.mu.Unlock()

	if h == nil || h.tenant != meta.Tenant {
		saga, err := s.Collection.FindOne(detached(ctx), meta, resource.FilterOne{Query: resource.Query{resource.KeyID: sagaID}})
		if err != nil {
			return nil, err
		}
		if saga.State != StateStarted {
			return nil, fmt.Errorf("%w: saga %s is %s", resource.ErrWrongState, sagaID, saga.State)
		}
		return nil, fmt.Errorf("%w: saga %s is not held by this instance", resource.ErrWrongState, sagaID)
	}
	if !s.now().Before(h.expires) {
		return nil, fmt.Errorf("%w: saga %s expired", resource.ErrWrongState, sagaID)
	}
	return h.session, nil
}

// Add agrega una etapa a una saga abierta.
func (s *Sagas) Add(ctx context.Context, meta resource.Metadata, q resource.Query, in StageInput) (*Saga, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.Modify(detached(ctx), meta, q, func(saga *Saga) error {
		if saga.State != StateStarted {
			return fmt.Errorf("%w: saga %s is %s", resource.ErrWrongState, saga.ID, saga.State)
		}
		if !s.now().Before(saga.ExpiresAt) {
			return fmt.Errorf("%w: saga %s expired", resource.ErrWrongState, saga.ID)
		}
		saga.Stages = append(saga.Stages, Stage{
			Collection: in.Collection,
			Action:     in.Action,
			EntityID:   in.EntityID,
			AddedAt:    s.now().UTC(),
			AddedBy:    meta.Subject,
		})
		return nil
	})
}

// Commit confirma la sesión de la saga.
func (s *Sagas) Commit(ctx context.Context, meta resource.Metadata, q resource.Query) (*Saga, error) {
	return s.finish(ctx, meta, q, StateCommitted, func(ctx context.Context, sess resource.Session) error {
		return sess.Commit(ctx)
	})
}

// Abort deshace la sesión de la saga.
func (s *Sagas) Abort(ctx context.Context, meta resource.Metadata, q resource.Query) (*Saga, error) {
	return s.finish(ctx, meta, q, StateAborted, func(ctx context.Context, sess resource.Session) error {
		return sess.Rollback(ctx)
	})
}

func (s *Sagas) finish(ctx context.Context, meta resource.Metadata, q resource.Query, final string, act func(context.Context, resource.Session) error) (*Saga, error) {
	ctx = detached(ctx)
	saga, err := s.Collection.FindOne(ctx, meta, resource.FilterOne{Query: q})
	if err != nil {
		return nil, err
	}
	if saga.State != StateStarted {
		return nil, fmt.Errorf("%w: saga %s is %s", resource.ErrWrongState, saga.ID, saga.State)
	}

	// quien saca la sesión del registro es el único que la cierra
	s.mu.Lock()
	h := s.open[saga.ID]
	if h != nil && h.tenant == meta.Tenant {
		delete(s.open, saga.ID)
	} else {
		h = nil
	}
	s.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("%w: saga %s is not held by this instance", resource.ErrWrongState, saga.ID)
	}

	state, reason := final, ""
	actErr := act(context.WithoutCancel(ctx), h.session)
	if actErr != nil {
		state, reason = StateAborted, actErr.Error()
		if final == StateCommitted {
			_ = h.session.Rollback(context.WithoutCancel(ctx))
		}
	}
	out, err := s.mark(ctx, meta, saga.ID, state, reason)
	s.closed(ctx, meta.Tenant)
	if actErr != nil {
		s.log(ctx).Error("saga close failed", logger.SagaID(saga.ID), logger.Err(actErr))
		return nil, fmt.Errorf("sagas: %s %s: %w", final, saga.ID, actErr)
	}
	return out, err
}

func (s *Sagas) mark(ctx context.Context, meta resource.Metadata, id, state, reason string) (*Saga, error) {
	out, err := s.Modify(ctx, meta, resource.Query{resource.KeyID: id}, func(saga *Saga) error {
		now := s.now().UTC()
		saga.State = state
		saga.Reason = reason
		saga.ClosedAt = &now
		return nil
	})
	if err != nil {
		s.log(ctx).Warn("saga state not recorded", logger.SagaID(id), logger.String("state", state), logger.Err(err))
		return nil, err
	}
	metrics.SagaTransitions.WithLabelValues(state).Inc()
	return out, nil
}

func (s *Sagas) closed(ctx context.Context, tenant string) {
	s.mu.Lock()
	hooks := append([]CloseHook(nil), s.hooks...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(ctx, tenant)
	}
}

// Sweep hace rollback de las sagas vencidas y las marca expired. Retorna
// cuántas cerró.
func (s *Sagas) Sweep(ctx context.Context) int {
	now := s.now()
	expired := map[string]*held{}
	s.mu.Lock()
	for id, h := range s.open {
		if !now.Before(h.expires) {
			expired[id] = h
			delete(s.open, id)
		}
	}
	s.mu.Unlock()

	ctx = detached(ctx)
	for id, h := range expired {
		if err := h.session.Rollback(ctx); err != nil {
			s.log(ctx).Warn("saga rollback failed", logger.SagaID(id), logger.Err(err))
		}
		meta := resource.Metadata{Tenant: h.tenant, Subject: "system:sweeper", Time: now}
		_, _ = s.mark(ctx, meta, id, StateExpired, "ttl exceeded")
		s.closed(ctx, h.tenant)
	}
	return len(expired)
}

// Run barre cada interval hasta que ctx se cancele. Al salir hace rollback
// de todas las sesiones que quedaban abiertas.
func (s *Sagas) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.abortAll(context.WithoutCancel(ctx))
			return
		case <-t.C:
			if n := s.Sweep(ctx); n > 0 {
				s.log(ctx).Info("expired sagas swept", logger.Int("count", n))
			}
		}
	}
}

func (s *Sagas) abortAll(ctx context.Context) {
	s.mu.Lock()
	open := s.open
	s.open = map[string]*held{}
	s.mu.Unlock()
	for id, h := range open {
		_ = h.session.Rollback(ctx)
		meta := resource.Metadata{Tenant: h.tenant, Subject: "system:shutdown"}
		_, _ = s.mark(detached(ctx), meta, id, StateAborted, "server shutdown")
	}
}
