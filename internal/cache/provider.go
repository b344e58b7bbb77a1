package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/metrics"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

// Provider decora un sub-recurso: count, find y findOne se sirven desde el
// cache; toda escritura exitosa invalida el tenant subiendo la generación.
//
// Key de lectura: <key>:<tenant>:<gen>:<op>:<sha256(filtro)>
// Key de generación: <key>:<tenant>:gen
//
// Un fallo del cache nunca falla la lectura: se loguea y se va al provider.
// Dentro de una saga (sesión en el contexto) no se lee ni se escribe el
// cache porque el estado todavía no es visible para otros.
type Provider[E any] struct {
	next   resource.Provider[E]
	client Client
	key    string
	ttl    time.Duration
	group  singleflight.Group
}

var _ resource.Provider[struct{}] = (*Provider[struct{}])(nil)

// Wrap retorna next decorado. Si client es nil retorna next tal cual.
func Wrap[E any](next resource.Provider[E], client Client, key string, ttl time.Duration) resource.Provider[E] {
	if client == nil || key == "" {
		return next
	}
	return &Provider[E]{next: next, client: client, key: key, ttl: ttl}
}

// Flush invalida todas las lecturas cacheadas de un tenant.
func Flush(ctx context.Context, client Client, key, tenant string) error {
	if client == nil || key == "" {
		return nil
	}
	_, err := client.Incr(ctx, generationKey(key, tenant))
	if err == nil {
		metrics.CacheEvents.WithLabelValues(key, "flush").Inc()
	}
	return err
}

func generationKey(key, tenant string) string {
	return key + ":" + tenant + ":gen"
}

func (p *Provider[E]) log(ctx context.Context) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("cache"), logger.Key(p.key))
}

func (p *Provider[E]) generation(ctx context.Context, tenant string) (string, error) {
	v, err := p.client.Get(ctx, generationKey(p.key, tenant))
	if IsMiss(err) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseInt(v, 10, 64); err != nil {
		return "0", nil
	}
	return v, nil
}

func (p *Provider[E]) readKey(ctx context.Context, tenant, op string, filter any) (string, error) {
	gen, err := p.generation(ctx, tenant)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return p.key + ":" + tenant + ":" + gen + ":" + op + ":" + hex.EncodeToString(sum[:]), nil
}

// fill resuelve una lectura desde el cache o la carga con load y la guarda.
// Misses concurrentes sobre la misma key comparten una sola carga.
func fill[E any, T any](ctx context.Context, p *Provider[E], meta resource.Metadata, op string, filter any, load func() (T, error)) (T, error) {
	if _, ok := resource.SessionFrom(ctx); ok {
		return load()
	}
	key, err := p.readKey(ctx, meta.Tenant, op, filter)
	if err != nil {
		metrics.CacheEvents.WithLabelValues(p.key, "error").Inc()
		p.log(ctx).Warn("cache key failed", logger.Op(op), logger.Err(err))
		return load()
	}

	if raw, err := p.client.Get(ctx, key); err == nil {
		var out T
		if jerr := json.Unmarshal([]byte(raw), &out); jerr == nil {
			metrics.CacheEvents.WithLabelValues(p.key, "hit").Inc()
			return out, nil
		}
	} else if !IsMiss(err) {
		metrics.CacheEvents.WithLabelValues(p.key, "error").Inc()
		p.log(ctx).Warn("cache get failed", logger.Op(op), logger.Err(err))
	}
	metrics.CacheEvents.WithLabelValues(p.key, "miss").Inc()

	v, err, _ := p.group.Do(key, func() (any, error) {
		out, err := load()
		if err != nil {
			return out, err
		}
		if raw, jerr := json.Marshal(out); jerr == nil {
			if serr := p.client.Set(ctx, key, string(raw), p.ttl); serr != nil {
				p.log(ctx).Warn("cache set failed", logger.Op(op), logger.Err(serr))
			}
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (p *Provider[E]) flush(ctx context.Context, meta resource.Metadata) {
	if err := Flush(ctx, p.client, p.key, meta.Tenant); err != nil {
		metrics.CacheEvents.WithLabelValues(p.key, "error").Inc()
		p.log(ctx).Warn("cache flush failed", logger.TenantID(meta.Tenant), logger.Err(err))
	}
}

// flushed ejecuta una escritura y, si tuvo éxito, invalida el tenant.
func flushed[E any, T any](ctx context.Context, p *Provider[E], meta resource.Metadata, write func() (T, error)) (T, error) {
	out, err := write()
	if err == nil {
		p.flush(ctx, meta)
	}
	return out, err
}

// ─── lecturas ───

func (p *Provider[E]) Count(ctx context.Context, meta resource.Metadata, f resource.QueryFilter) (int64, error) {
	return fill(ctx, p, meta, "count", f, func() (int64, error) { return p.next.Count(ctx, meta, f) })
}

func (p *Provider[E]) Find(ctx context.Context, meta resource.Metadata, f resource.Filter) ([]*E, error) {
	return fill(ctx, p, meta, "find", f, func() ([]*E, error) { return p.next.Find(ctx, meta, f) })
}

func (p *Provider[E]) FindOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne) (*E, error) {
	return fill(ctx, p, meta, "findOne", f, func() (*E, error) { return p.next.FindOne(ctx, meta, f) })
}

// Cursor no se cachea: es un stream vivo.
func (p *Provider[E]) Cursor(ctx context.Context, meta resource.Metadata, f resource.Filter) (*resource.Stream[E], error) {
	return p.next.Cursor(ctx, meta, f)
}

// ─── escrituras ───

func (p *Provider[E]) Create(ctx context.Context, meta resource.Metadata, item *E) (*E, error) {
	return flushed(ctx, p, meta, func() (*E, error) { return p.next.Create(ctx, meta, item) })
}

func (p *Provider[E]) CreateBulk(ctx context.Context, meta resource.Metadata, items []*E) ([]*E, error) {
	return flushed(ctx, p, meta, func() ([]*E, error) { return p.next.CreateBulk(ctx, meta, items) })
}

func (p *Provider[E]) DeleteOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne) (*E, error) {
	return flushed(ctx, p, meta, func() (*E, error) { return p.next.DeleteOne(ctx, meta, f) })
}

func (p *Provider[E]) RestoreOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne) (*E, error) {
	return flushed(ctx, p, meta, func() (*E, error) { return p.next.RestoreOne(ctx, meta, f) })
}

func (p *Provider[E]) DestroyOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne) (*E, error) {
	return flushed(ctx, p, meta, func() (*E, error) { return p.next.DestroyOne(ctx, meta, f) })
}

func (p *Provider[E]) UpdateOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne, patch resource.Patch) (*E, error) {
	return flushed(ctx, p, meta, func() (*E, error) { return p.next.UpdateOne(ctx, meta, f, patch) })
}

func (p *Provider[E]) UpdateBulk(ctx context.Context, meta resource.Metadata, f resource.QueryFilter, patch resource.Patch) (int64, error) {
	return flushed(ctx, p, meta, func() (int64, error) { return p.next.UpdateBulk(ctx, meta, f, patch) })
}

// Unwrap retorna el provider decorado.
func (p *Provider[E]) Unwrap() resource.Provider[E] { return p.next }
