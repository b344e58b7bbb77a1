package middlewares

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

const ctxAuditKey ctxKey = "audit"

// auditTrail junta los ids que tocó una escritura. Lo crea WithAudit (o el
// resolver GraphQL) y lo completa el handler con AuditIDs.
type auditTrail struct {
	mu  sync.Mutex
	ids []string
}

// NewAuditContext prepara ctx para recibir AuditIDs.
func NewAuditContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxAuditKey, &auditTrail{})
}

// AuditIDs anota ids afectados por la escritura en curso. Sin audit en el
// contexto no hace nada.
func AuditIDs(ctx context.Context, ids ...string) {
	t, ok := ctx.Value(ctxAuditKey).(*auditTrail)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			t.ids = append(t.ids, id)
		}
	}
}

// AuditedIDs retorna lo anotado con AuditIDs, separado por comas.
func AuditedIDs(ctx context.Context) string {
	t, ok := ctx.Value(ctxAuditKey).(*auditTrail)
	if !ok {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.ids, ",")
}

// WithAudit deja un evento de auditoría por cada escritura:
// {action, resource, tenant, subject, id, result}. El id es el {id} de la
// ruta o, si no hay, los ids que anotó el handler (creates, start).
func WithAudit(pair policy.Pair) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorder(w)
			ctx := NewAuditContext(r.Context())
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			meta, _ := resource.MetadataFrom(ctx)
			result := "success"
			if rec.Status() >= 400 {
				result = "failure"
			}
			id := chi.URLParam(r, "id")
			if id == "" {
				id = AuditedIDs(ctx)
			}
			logger.From(ctx).Info("audit",
				logger.Layer("audit"),
				logger.Action(string(pair.Action)),
				logger.Resource(pair.Resource.String()),
				logger.TenantID(meta.Tenant),
				logger.Subject(meta.Subject),
				logger.EntityID(id),
				logger.Status(rec.Status()),
				logger.String("result", result),
			)
		})
	}
}
