// Package career: empleados y productos. No tiene acciones propias.
package career

import (
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

const (
	Context = "career"

	EmployeesCollection = "career_employees"
	ProductsCollection  = "career_products"
)

// Employee es un empleado de un tenant.
type Employee struct {
	resource.Core

	FirstName  string     `json:"first_name" validate:"required,max=64"`
	LastName   string     `json:"last_name" validate:"required,max=64"`
	Email      string     `json:"email" validate:"required,email"`
	Phone      string     `json:"phone,omitempty" validate:"omitempty,e164"`
	Position   string     `json:"position,omitempty" validate:"omitempty,max=128"`
	Department string     `json:"department,omitempty" validate:"omitempty,max=128"`
	Salary     float64    `json:"salary,omitempty" validate:"gte=0"`
	HiredAt    *time.Time `json:"hired_at,omitempty"`
	Status     string     `json:"status,omitempty" validate:"omitempty,oneof=active inactive terminated"`
}

// Product es un producto del catálogo.
type Product struct {
	resource.Core

	Name        string   `json:"name" validate:"required,max=128"`
	SKU         string   `json:"sku" validate:"required,alphanumunicode|containsany=-_,max=64"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=2048"`
	Price       float64  `json:"price" validate:"gte=0"`
	Currency    string   `json:"currency,omitempty" validate:"omitempty,iso4217"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,required,max=32"`
	Status      string   `json:"status,omitempty" validate:"omitempty,oneof=draft active discontinued"`
}

// Provider expone un sub-recurso por colección.
type Provider struct {
	Employees *resource.Collection[Employee]
	Products  *resource.Collection[Product]
}

// NewProvider crea el provider sobre b.
func NewProvider(b store.Backend, opts ...resource.CollectionOption) *Provider {
	return &Provider{
		Employees: resource.NewCollection[Employee](EmployeesCollection, b.Collection(EmployeesCollection), opts...),
		Products:  resource.NewCollection[Product](ProductsCollection, b.Collection(ProductsCollection), opts...),
	}
}
