// Package store define los backends de documentos del gateway (memory,
// postgres) y el registro por nombre de driver.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

// Backend es un almacén de colecciones de documentos.
type Backend interface {
	Name() string
	// Collection retorna la colección name ("auth_grants"); se crea al vuelo.
	Collection(name string) resource.Documents
	// Begin abre una sesión transaccional que sobrevive al request (sagas).
	Begin(ctx context.Context) (resource.Session, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config parámetros de conexión comunes a todos los drivers.
type Config struct {
	Driver   string
	DSN      string
	Schema   string
	MaxConns int32
	MinConns int32
	// ConnectRetry es el tiempo máximo reintentando la conexión inicial.
	// 0 = un solo intento.
	ConnectRetry time.Duration
}

// Opener abre un backend para un driver.
type Opener func(ctx context.Context, cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	openers    = map[string]Opener{}
)

// Register registra un driver. Lo llaman los paquetes de driver en init().
func Register(driver string, o Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := openers[driver]; dup {
		panic("store: driver registered twice: " + driver)
	}
	openers[driver] = o
}

// Drivers lista los drivers registrados.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open abre el backend configurado, reintentando con backoff exponencial
// hasta cfg.ConnectRetry.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	registryMu.RLock()
	open, ok := openers[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q (available: %v)", cfg.Driver, Drivers())
	}

	log := logger.From(ctx).With(logger.Layer("store"), logger.Component(cfg.Driver))

	if cfg.ConnectRetry <= 0 {
		return open(ctx, cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.ConnectRetry

	var be Backend
	op := func() error {
		var err error
		be, err = open(ctx, cfg)
		if err != nil {
			log.Warn("store connect failed, retrying", logger.Err(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Driver, err)
	}
	return be, nil
}
