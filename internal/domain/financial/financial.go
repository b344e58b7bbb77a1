// Package financial: facturas y su acción de pago.
package financial

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

const (
	Context = "financial"

	InvoicesCollection = "financial_invoices"
)

// Estados de una factura.
const (
	StatusDraft     = "draft"
	StatusOpen      = "open"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Line es un renglón de la factura.
type Line struct {
	Description string  `json:"description" validate:"required,max=256"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// Payment es un pago aplicado.
type Payment struct {
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
	PaidBy    string    `json:"paid_by,omitempty"`
}

// Invoice es una factura. Total se calcula de Lines al crearla si viene en 0.
type Invoice struct {
	resource.Core

	Number   string     `json:"number" validate:"required,max=64"`
	Customer string     `json:"customer" validate:"required,max=128"`
	Currency string     `json:"currency" validate:"required,iso4217"`
	Lines    []Line     `json:"lines,omitempty" validate:"omitempty,dive"`
	Total    float64    `json:"total" validate:"gte=0"`
	Paid     float64    `json:"paid,omitempty" validate:"gte=0"`
	Status   string     `json:"status,omitempty" validate:"omitempty,oneof=draft open paid cancelled"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Payments []Payment  `json:"payments,omitempty"`
}

// PaymentInput es el body de la acción de pago.
type PaymentInput struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Method    string  `json:"method" validate:"required,oneof=cash card transfer wallet"`
	Reference string  `json:"reference,omitempty" validate:"omitempty,max=128"`
}

// Invoices es la colección genérica más el cálculo de totales y el pago.
type Invoices struct {
	*resource.Collection[Invoice]
	now func() time.Time
}

var _ resource.Provider[Invoice] = (*Invoices)(nil)

// Provider del contexto financial.
type Provider struct {
	Invoices *Invoices
}

// NewProvider crea el provider sobre b.
func NewProvider(b store.Backend, opts ...resource.CollectionOption) *Provider {
	return &Provider{Invoices: &Invoices{
		Collection: resource.NewCollection[Invoice](InvoicesCollection, b.Collection(InvoicesCollection), opts...),
		now:        time.Now,
	}}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func prepare(inv *Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: empty payload", resource.ErrInvalidInput)
	}
	if inv.Total == 0 {
		for _, l := range inv.Lines {
			inv.Total += l.Quantity * l.UnitPrice
		}
		inv.Total = round2(inv.Total)
	}
	// los pagos sólo entran por la acción de pago
	inv.Paid = 0
	inv.Payments = nil
	if inv.Status == "" || inv.Status == StatusPaid {
		inv.Status = StatusOpen
	}
	return nil
}

func (s *Invoices) Create(ctx context.Context, meta resource.Metadata, item *Invoice) (*Invoice, error) {
	if err := prepare(item); err != nil {
		return nil, err
	}
	return s.Collection.Create(ctx, meta, item)
}

func (s *Invoices) CreateBulk(ctx context.Context, meta resource.Metadata, items []*Invoice) ([]*Invoice, error) {
	for _, item := range items {
		if err := prepare(item); err != nil {
			return nil, err
		}
	}
	return s.Collection.CreateBulk(ctx, meta, items)
}

// Pay aplica un pago a la factura seleccionada por q. Acumula Paid y pasa a
// "paid" cuando cubre el total.
func (s *Invoices) Pay(ctx context.Context, meta resource.Metadata, q resource.Query, in PaymentInput) (*Invoice, error) {
	if in.Amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return nil, fmt.Errorf("%w: amount must be greater than zero", resource.ErrInvalidInput)
	}
	return s.Modify(ctx, meta, q, func(inv *Invoice) error {
		switch inv.Status {
		case StatusPaid, StatusCancelled:
			return fmt.Errorf("%w: invoice %s is %s", resource.ErrWrongState, inv.Number, inv.Status)
		}
		inv.Paid = round2(inv.Paid + in.Amount)
		inv.Payments = append(inv.Payments, Payment{
			Amount:    in.Amount,
			Method:    in.Method,
			Reference: in.Reference,
			PaidAt:    s.now().UTC(),
			PaidBy:    meta.Subject,
		})
		if inv.Paid >= inv.Total {
			inv.Status = StatusPaid
		} else {
			inv.Status = StatusOpen
		}
		return nil
	})
}
