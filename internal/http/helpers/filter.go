package helpers

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/store"
)

// Límites de paginación para find.
const (
	DefaultLimit int64 = 50
	MaxLimit     int64 = 1000
)

// filterJSON es la forma del parámetro ?filter=.
type filterJSON struct {
	Query      resource.Query `json:"query"`
	Projection []string       `json:"projection"`
	Sort       []string       `json:"sort"`
	Pagination *struct {
		Skip  int64 `json:"skip"`
		Limit int64 `json:"limit"`
	} `json:"pagination"`
}

// ParseFilter lee el filtro de una lista desde el query string:
//
//	?filter={"query":{...},"projection":[...],"sort":[...],"pagination":{"skip":0,"limit":10}}
//	?q={...}&skip=0&limit=10&sort=-created_at,name&fields=name,total
//
// Valida operadores y sort. No aplica defaults de paginación.
func ParseFilter(v url.Values) (resource.Filter, error) {
	var f resource.Filter
	if raw := strings.TrimSpace(v.Get("filter")); raw != "" {
		var fj filterJSON
		if err := DecodeStrict([]byte(raw), &fj); err != nil {
			return f, httperrors.ErrInvalidFilter.WithDetail(err.Error())
		}
		f.Query = fj.Query
		f.Projection = fj.Projection
		f.Sort = fj.Sort
		if fj.Pagination != nil {
			f.Pagination = resource.Pagination{Skip: fj.Pagination.Skip, Limit: fj.Pagination.Limit}
		}
	} else {
		q, err := parseQuery(v)
		if err != nil {
			return f, err
		}
		f.Query = q
		f.Projection = csv(v.Get("fields"))
		f.Sort = csv(v.Get("sort"))
		if f.Pagination.Skip, err = int64Param(v, "skip"); err != nil {
			return f, err
		}
		if f.Pagination.Limit, err = int64Param(v, "limit"); err != nil {
			return f, err
		}
	}
	if f.Pagination.Skip < 0 || f.Pagination.Limit < 0 {
		return f, httperrors.ErrInvalidFilter.WithDetail("skip and limit must be >= 0")
	}
	if err := store.ValidateQuery(f.Query); err != nil {
		return f, httperrors.ErrInvalidFilter.WithDetail(err.Error())
	}
	if err := store.ValidateSort(f.Sort); err != nil {
		return f, httperrors.ErrInvalidFilter.WithDetail(err.Error())
	}
	return f, nil
}

// WithPageDefaults aplica el límite por defecto y el máximo.
func WithPageDefaults(f resource.Filter) resource.Filter {
	if f.Pagination.Limit == 0 {
		f.Pagination.Limit = DefaultLimit
	}
	if f.Pagination.Limit > MaxLimit {
		f.Pagination.Limit = MaxLimit
	}
	return f
}

func parseQuery(v url.Values) (resource.Query, error) {
	raw := strings.TrimSpace(v.Get("q"))
	if raw == "" {
		return nil, nil
	}
	var q resource.Query
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, httperrors.ErrInvalidFilter.WithDetail("q: " + err.Error())
	}
	return q, nil
}

func int64Param(v url.Values, key string) (int64, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, httperrors.ErrInvalidFilter.WithDetail(key + " must be an integer")
	}
	return n, nil
}

func csv(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
