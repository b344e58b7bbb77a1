package modules

import (
	"github.com/wenex-org/platform-sub000/internal/domain/career"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
)

func Employees(p *career.Provider) crud.Definition[career.Employee] {
	return crud.Definition[career.Employee]{
		Name:     "employees",
		Domain:   career.Context,
		Path:     "/career/employees",
		Entity:   "Employee",
		Provider: p.Employees,
		CacheKey: "career:employees",
	}
}

func Products(p *career.Provider) crud.Definition[career.Product] {
	return crud.Definition[career.Product]{
		Name:     "products",
		Domain:   career.Context,
		Path:     "/career/products",
		Entity:   "Product",
		Provider: p.Products,
		CacheKey: "career:products",
		CacheTTL: catalogTTL,
	}
}
