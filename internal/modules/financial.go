package modules

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/financial"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
)

func Invoices(p *financial.Provider) crud.Definition[financial.Invoice] {
	return crud.Definition[financial.Invoice]{
		Name:     "invoices",
		Domain:   financial.Context,
		Path:     "/financial/invoices",
		Entity:   "Invoice",
		Provider: p.Invoices,
		Actions: []crud.Action{{
			Name:    "payment",
			Method:  http.MethodPost,
			Pattern: "/{id}/payment",
			Field:   "paymentInvoiceById",
			Verb:    "pay",
			Write:   true,
			Args:    crud.ArgID | crud.ArgData,
			Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
				q, err := crud.Identity(ctx, in)
				if err != nil {
					return nil, err
				}
				body, err := crud.Decode[financial.PaymentInput](in.Data)
				if err != nil {
					return nil, err
				}
				inv, err := p.Invoices.Pay(ctx, meta, q, *body)
				if err != nil {
					return nil, err
				}
				return resource.NewData(inv), nil
			},
		}},
	}
}
