package middlewares

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

// RequirePolicy evalúa los perms del token contra pair. Si no hay permiso
// responde 403; si lo hay, deja el policy.Permission en el contexto para
// que la capa crud aplique el filtro de owner en permisos ":own".
func RequirePolicy(pair policy.Pair) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := Authorize(r.Context(), pair)
			if err != nil {
				httperrors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize es RequirePolicy sin transporte.
func Authorize(ctx context.Context, pair policy.Pair) (context.Context, error) {
	meta, ok := resource.MetadataFrom(ctx)
	if !ok {
		return ctx, httperrors.ErrUnauthorized.WithDetail("no metadata in context")
	}
	perm := policy.Evaluate(meta.Perms, meta.Subject, pair)
	if !perm.Granted {
		return ctx, httperrors.ErrPolicyDenied.WithDetail("missing permission " + pair.String())
	}
	return policy.WithPermission(ctx, perm), nil
}
