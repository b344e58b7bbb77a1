package middlewares

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	"github.com/wenex-org/platform-sub000/internal/metrics"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// DefaultRateKey: ip + tenant (+ grupo de rutas).
func DefaultRateKey(r *http.Request) string {
	tenant := "-"
	if m, ok := resource.MetadataFrom(r.Context()); ok && m.Tenant != "" {
		tenant = m.Tenant
	}
	return helpers.ClientIP(r) + "|" + tenant
}

// RateLimitConfig configura el comportamiento del middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
	// Group separa contadores por grupo de rutas (p.ej. "auth.grants").
	Group string
}

// WithRateLimit crea un middleware de rate limiting. Va después de
// RequireAuth para poder usar el tenant en la key.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return nil
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if cfg.Group != "" {
				key = cfg.Group + "|" + key
			}
			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				// si el limiter falla dejamos pasar
				logger.From(r.Context()).Warn("rate limit error", logger.Layer("middleware"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if res.Limit > 0 {
				h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.ResetIn > 0 {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetIn).Unix(), 10))
			}

			if !res.Allowed {
				secs := int(res.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				metrics.RateLimited.WithLabelValues(cfg.Group).Inc()
				httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckRate aplica el limiter fuera de la cadena HTTP (resolvers GraphQL).
// Usa la misma key que DefaultRateKey, así REST y GraphQL comparten el
// contador del grupo. Si el limiter falla deja pasar.
func CheckRate(ctx context.Context, l rate.Limiter, group string) error {
	if l == nil {
		return nil
	}
	meta, _ := resource.MetadataFrom(ctx)
	tenant := meta.Tenant
	if tenant == "" {
		tenant = "-"
	}
	key := meta.IP + "|" + tenant
	if group != "" {
		key = group + "|" + key
	}
	res, err := l.Allow(ctx, key)
	if err != nil {
		logger.From(ctx).Warn("rate limit error", logger.Layer("middleware"), logger.Err(err))
		return nil
	}
	if !res.Allowed {
		metrics.RateLimited.WithLabelValues(group).Inc()
		return httperrors.ErrRateLimitExceeded
	}
	return nil
}
