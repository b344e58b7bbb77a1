package middlewares

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

// SessionResolver entrega la sesión transaccional de una saga abierta.
type SessionResolver interface {
	Session(ctx context.Context, meta resource.Metadata, sagaID string) (resource.Session, error)
}

// WithSaga: si el request trae X-Saga-Id, asocia la sesión de esa saga al
// contexto para que el store ejecute dentro de ella. Una saga inexistente
// responde 404 y una ya cerrada 409.
func WithSaga(resolver SessionResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := JoinSaga(r.Context(), resolver)
			if err != nil {
				httperrors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JoinSaga es WithSaga sin transporte.
func JoinSaga(ctx context.Context, resolver SessionResolver) (context.Context, error) {
	meta, ok := resource.MetadataFrom(ctx)
	if !ok || meta.SagaID == "" {
		return ctx, nil
	}
	if resolver == nil {
		return ctx, httperrors.ErrServiceUnavailable.WithDetail("sagas are not enabled")
	}
	s, err := resolver.Session(ctx, meta, meta.SagaID)
	if err != nil {
		return ctx, err
	}
	return resource.WithSession(ctx, s), nil
}
