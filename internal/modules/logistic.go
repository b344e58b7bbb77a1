package modules

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/logistic"
	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

func Stocks(p *logistic.Provider) crud.Definition[logistic.Stock] {
	return crud.Definition[logistic.Stock]{
		Name:     "stocks",
		Domain:   logistic.Context,
		Path:     "/logistic/stocks",
		Entity:   "Stock",
		Provider: p.Stocks,
		CacheKey: "logistic:stocks",
	}
}

func Locations(p *logistic.Provider) crud.Definition[logistic.Location] {
	return crud.Definition[logistic.Location]{
		Name:     "locations",
		Domain:   logistic.Context,
		Path:     "/logistic/locations",
		Entity:   "Location",
		Provider: p.Locations,
		CacheKey: "logistic:locations",
		CacheTTL: catalogTTL,
		Actions: []crud.Action{
			{
				Name:    "addressLookup",
				Method:  http.MethodGet,
				Pattern: "/address-lookup",
				Field:   "addressLookupLocation",
				Verb:    "lookup",
				Level:   policy.LevelRead,
				Params:  []string{"lat", "lng"},
				Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
					lat, err := coordinate(in, "lat", 90)
					if err != nil {
						return nil, err
					}
					lng, err := coordinate(in, "lng", 180)
					if err != nil {
						return nil, err
					}
					near, err := p.Locations.AddressLookup(ctx, meta, crud.OwnedQuery(ctx, nil), lat, lng)
					if err != nil {
						return nil, err
					}
					return resource.NewData(near), nil
				},
			},
			{
				Name:    "geocodeLookup",
				Method:  http.MethodGet,
				Pattern: "/geocode-lookup",
				Field:   "geocodeLookupLocations",
				Verb:    "lookup",
				Level:   policy.LevelRead,
				Params:  []string{"address"},
				Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
					address := strings.TrimSpace(in.Param("address"))
					if address == "" {
						return nil, httperrors.ErrBadRequest.WithDetail("address is required")
					}
					found, err := p.Locations.GeocodeLookup(ctx, meta, crud.OwnedQuery(ctx, nil), address)
					if err != nil {
						return nil, err
					}
					return resource.NewItems(found, resource.Pagination{}), nil
				},
			},
		},
	}
}

func coordinate(in crud.Input, name string, limit float64) (float64, error) {
	raw := strings.TrimSpace(in.Param(name))
	if raw == "" {
		return 0, httperrors.ErrBadRequest.WithDetail(name + " is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < -limit || v > limit {
		return 0, httperrors.ErrBadRequest.WithDetail(name + " must be a number between -" +
			strconv.FormatFloat(limit, 'f', -1, 64) + " and " + strconv.FormatFloat(limit, 'f', -1, 64))
	}
	return v, nil
}
