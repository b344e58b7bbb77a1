// Package modules declara los módulos del gateway. Cada módulo es un
// crud.Definition: colección, path, nombre GraphQL, cache, límite y
// acciones propias. No hay código de handler por módulo.
package modules

import (
	"context"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/auth"
	"github.com/wenex-org/platform-sub000/internal/domain/career"
	"github.com/wenex-org/platform-sub000/internal/domain/essential"
	"github.com/wenex-org/platform-sub000/internal/domain/financial"
	"github.com/wenex-org/platform-sub000/internal/domain/logistic"
	"github.com/wenex-org/platform-sub000/internal/domain/special"
	"github.com/wenex-org/platform-sub000/internal/domain/touch"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/store"
)

// Providers agrupa un provider por contexto.
type Providers struct {
	Auth      *auth.Provider
	Career    *career.Provider
	Logistic  *logistic.Provider
	Financial *financial.Provider
	Essential *essential.Provider
	Special   *special.Provider
	Touch     *touch.Provider
}

// NewProviders crea todos los providers sobre el mismo backend.
func NewProviders(b store.Backend, sagas essential.Config, delivery touch.Options) Providers {
	return Providers{
		Auth:      auth.NewProvider(b),
		Career:    career.NewProvider(b),
		Logistic:  logistic.NewProvider(b),
		Financial: financial.NewProvider(b),
		Essential: essential.NewProvider(b, sagas),
		Special:   special.NewProvider(b),
		Touch:     touch.NewProvider(b, delivery),
	}
}

// cache por defecto de los módulos de catálogo
const catalogTTL = 5 * time.Minute

// Build arma todos los módulos en el orden en que se montan.
func Build(p Providers, opts crud.Options) []crud.Module {
	return []crud.Module{
		crud.New(Grants(p.Auth), opts),
		crud.New(Apps(p.Auth), opts),
		crud.New(Employees(p.Career), opts),
		crud.New(Products(p.Career), opts),
		crud.New(Stocks(p.Logistic), opts),
		crud.New(Locations(p.Logistic), opts),
		crud.New(Invoices(p.Financial), opts),
		crud.New(Sagas(p.Essential), opts),
		crud.New(Files(p.Special), opts),
		crud.New(Stats(p.Special), opts),
		crud.New(Emails(p.Touch), opts),
		crud.New(Pushes(p.Touch), opts),
	}
}

// FlushTenant invalida el cache de todos los módulos para un tenant. Es el
// hook de cierre de las sagas: lo escrito dentro de la sesión no pasó por
// el decorador de cache.
func FlushTenant(mods []crud.Module) essential.CloseHook {
	return func(ctx context.Context, tenant string) {
		for _, m := range mods {
			if err := m.Flush(ctx, tenant); err != nil {
				logger.From(ctx).Warn("cache flush failed",
					logger.Layer("modules"), logger.Resource(m.Name()), logger.TenantID(tenant), logger.Err(err))
			}
		}
	}
}
