// Package logistic: stocks y locations, con búsqueda de la location más
// cercana a unas coordenadas y búsqueda por dirección.
package logistic

import (
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

const (
	Context = "logistic"

	StocksCollection    = "logistic_stocks"
	LocationsCollection = "logistic_locations"
)

// Stock es la existencia de un producto en una location.
type Stock struct {
	resource.Core

	Product  string  `json:"product" validate:"required,max=64"`
	Location string  `json:"location,omitempty" validate:"omitempty,max=64"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Reserved float64 `json:"reserved,omitempty" validate:"gte=0,ltefield=Quantity"`
	Unit     string  `json:"unit,omitempty" validate:"omitempty,max=16"`
}

// Location es un punto con dirección y coordenadas.
type Location struct {
	resource.Core

	Name       string  `json:"name" validate:"required,max=128"`
	Address    string  `json:"address" validate:"required,max=512"`
	City       string  `json:"city,omitempty" validate:"omitempty,max=128"`
	Country    string  `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	PostalCode string  `json:"postal_code,omitempty" validate:"omitempty,max=16"`
	Lat        float64 `json:"lat" validate:"latitude"`
	Lng        float64 `json:"lng" validate:"longitude"`
}

// Provider expone un sub-recurso por colección.
type Provider struct {
	Stocks    *resource.Collection[Stock]
	Locations *Locations
}

// NewProvider crea el provider sobre b.
func NewProvider(b store.Backend, opts ...resource.CollectionOption) *Provider {
	return &Provider{
		Stocks:    resource.NewCollection[Stock](StocksCollection, b.Collection(StocksCollection), opts...),
		Locations: &Locations{Collection: resource.NewCollection[Location](LocationsCollection, b.Collection(LocationsCollection), opts...)},
	}
}
