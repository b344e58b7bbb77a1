// Package cache guarda lecturas de sub-recursos en un key-value con TTL.
//
// Dos drivers: "memory" (go-cache, por instancia) y "redis" (compartido
// entre réplicas; su conexión la reutiliza el rate limiter). Provider es el
// decorador que se monta sobre un resource.Provider.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client es el key-value que consume Provider. Los valores son JSON ya
// serializado; los contadores de generación se guardan como enteros.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	// Set con ttl 0 usa el TTL por defecto del driver.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr sube un contador sin expiración y retorna el valor nuevo.
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver     string // memory | redis
	Addr       string // host:port o redis://...
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

// ErrMiss: la key no existe o expiró.
var ErrMiss = errors.New("cache: miss")

func IsMiss(err error) bool { return errors.Is(err, ErrMiss) }

// New abre el driver pedido. Un driver desconocido es error de config.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	case "redis":
		return DialRedis(ctx, cfg)
	}
	return nil, errors.New("cache: unknown driver " + cfg.Driver)
}
