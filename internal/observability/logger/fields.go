package logger

import (
	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Route(v string) zap.Field { return zap.String("route", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func Transport(v string) zap.Field { return zap.String("transport", v) }

// ─── Identidad ───

func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }
func Subject(v string) zap.Field { return zap.String("subject", v) }
func SagaID(v string) zap.Field { return zap.String("saga_id", v) }

// ─── Recursos ───

// Resource identifica la colección en formato <contexto>.<colección>.
func Resource(v string) zap.Field { return zap.String("resource", v) }

// Action es el verbo de policy (read, create, update, delete, restore, destroy, ...).
func Action(v string) zap.Field { return zap.String("action", v) }
func EntityID(v string) zap.Field { return zap.String("entity_id", v) }
func Ref(v string) zap.Field { return zap.String("ref", v) }
func Count(v int64) zap.Field { return zap.Int64("count", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: controller, provider, store, cache, transport.
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }
func Key(v string) zap.Field { return zap.String("key", v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
