// Package auth agrupa las colecciones de autorización: grants (reglas
// acción × recurso por sujeto) y apps (clientes con secreto).
package auth

import (
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

// Colecciones del contexto.
const (
	Context = "auth"

	GrantsCollection = "auth_grants"
	AppsCollection   = "auth_apps"
)

// Provider expone un sub-recurso por colección.
type Provider struct {
	Grants *resource.Collection[Grant]
	Apps   *Apps
}

// NewProvider crea el provider sobre b.
func NewProvider(b store.Backend, opts ...resource.CollectionOption) *Provider {
	return &Provider{
		Grants: resource.NewCollection[Grant](GrantsCollection, b.Collection(GrantsCollection), opts...),
		Apps:   NewApps(resource.NewCollection[App](AppsCollection, b.Collection(AppsCollection), opts...)),
	}
}
