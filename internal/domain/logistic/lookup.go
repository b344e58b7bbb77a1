package logistic

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

const earthRadiusKM = 6371.0088

// Locations es la colección genérica más las búsquedas geográficas. Ambas
// recorren las locations vivas del tenant; no hay geocoder externo.
type Locations struct {
	*resource.Collection[Location]
}

// Nearest es el resultado de AddressLookup.
type Nearest struct {
	Location   *Location `json:"location"`
	DistanceKM float64   `json:"distance_km"`
}

// Haversine retorna la distancia en km entre dos coordenadas.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// AddressLookup retorna la location más cercana a (lat, lng).
func (l *Locations) AddressLookup(ctx context.Context, meta resource.Metadata, q resource.Query, lat, lng float64) (*Nearest, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", resource.ErrInvalidInput)
	}
	stream, err := l.Cursor(ctx, meta, resource.Filter{Query: q})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var best *Nearest
	for loc := range stream.Items() {
		d := Haversine(lat, lng, loc.Lat, loc.Lng)
		if best == nil || d < best.DistanceKM {
			best = &Nearest{Location: loc, DistanceKM: d}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("locations: %w", resource.ErrNotFound)
	}
	best.DistanceKM = math.Round(best.DistanceKM*1000) / 1000
	return best, nil
}

// GeocodeLookup retorna las locations cuya dirección, nombre o ciudad
// contienen address (sin distinguir mayúsculas).
func (l *Locations) GeocodeLookup(ctx context.Context, meta resource.Metadata, q resource.Query, address string) ([]*Location, error) {
	needle := strings.ToLower(strings.TrimSpace(address))
	if needle == "" {
		return nil, fmt.Errorf("%w: address is required", resource.ErrInvalidInput)
	}
	stream, err := l.Cursor(ctx, meta, resource.Filter{Query: q, Sort: []string{"name"}})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	out := []*Location{}
	for loc := range stream.Items() {
		hay := strings.ToLower(loc.Address + "\n" + loc.Name + "\n" + loc.City)
		if strings.Contains(hay, needle) {
			out = append(out, loc)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
