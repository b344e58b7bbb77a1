package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

// RequireScope verifica que el token tenga un scope de domain con nivel
// >= level (o root). Debe usarse después de RequireAuth.
func RequireScope(domain string, level policy.Level) Middleware {
	accepted := strings.Join(policy.AcceptedScopes(domain, level), " ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := CheckScope(r.Context(), domain, level); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+accepted+`"`)
				httperrors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckScope es la verificación de RequireScope sin transporte; la usan
// también los resolvers GraphQL.
func CheckScope(ctx context.Context, domain string, level policy.Level) error {
	meta, ok := resource.MetadataFrom(ctx)
	if !ok {
		return httperrors.ErrUnauthorized.WithDetail("no metadata in context")
	}
	if !policy.HasScope(meta.Scopes, domain, level) {
		return httperrors.ErrInsufficientScopes.WithDetail("required scope (any of): " +
			strings.Join(policy.AcceptedScopes(domain, level), ", "))
	}
	return nil
}
