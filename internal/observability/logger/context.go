package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext deja l como logger del request.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With agrega campos al logger que ya trae ctx y lo vuelve a guardar.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return ToContext(ctx, From(ctx).With(fields...))
}

// From retorna el logger del request, o el global fuera de uno.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, _ := ctx.Value(ctxKey{}).(*zap.Logger); l != nil {
		return l
	}
	return L()
}
