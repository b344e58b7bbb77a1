package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	jwtx "github.com/wenex-org/platform-sub000/internal/jwt"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

// SagaHeader lleva el id de la saga cuyo contexto transaccional usa el request.
const SagaHeader = "X-Saga-Id"

// TokenVerifier valida un bearer token.
type TokenVerifier interface {
	Parse(token string) (*jwtx.Claims, error)
}

// RequireAuth valida Authorization: Bearer <JWT>, guarda las claims y arma
// la resource.Metadata del request. Si el token es inválido o falta, 401.
func RequireAuth(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[7:])

			claims, err := v.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="`+err.Error()+`"`)
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithDetail(err.Error()))
				return
			}

			meta := MetadataFromClaims(r, claims)
			ctx := resource.WithMetadata(r.Context(), meta)

			ctx = logger.With(ctx, logger.TenantID(meta.Tenant), logger.Subject(meta.Subject))
			if meta.SagaID != "" {
				ctx = logger.With(ctx, logger.SagaID(meta.SagaID))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetadataFromClaims arma la metadata de un request autenticado.
func MetadataFromClaims(r *http.Request, c *jwtx.Claims) resource.Metadata {
	return resource.Metadata{
		RequestID: GetRequestID(r.Context()),
		Tenant:    c.Tenant,
		Subject:   c.Subject,
		ClientID:  c.ClientID,
		Scopes:    c.Scopes,
		Perms:     c.Perms,
		IP:        helpers.ClientIP(r),
		UserAgent: r.UserAgent(),
		SagaID:    strings.TrimSpace(r.Header.Get(SagaHeader)),
		Time:      time.Now().UTC(),
	}
}
