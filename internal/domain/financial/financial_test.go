package financial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

var meta = resource.Metadata{Tenant: "t1", Subject: "cashier"}

func TestInvoices_CreateComputesTotal(t *testing.T) {
	p := NewProvider(memory.New())
	inv, err := p.Invoices.Create(context.Background(), meta, &Invoice{
		Number: "F-1", Customer: "acme", Currency: "EUR",
		Lines: []Line{{Description: "a", Quantity: 2, UnitPrice: 10.5}, {Description: "b", Quantity: 1, UnitPrice: 4}},
		Paid:  999,
	})
	require.NoError(t, err)
	require.Equal(t, 25.0, inv.Total)
	require.Zero(t, inv.Paid)
	require.Equal(t, StatusOpen, inv.Status)
}

func TestInvoices_Pay(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(memory.New())
	inv, err := p.Invoices.Create(ctx, meta, &Invoice{Number: "F-2", Customer: "acme", Currency: "EUR", Total: 100})
	require.NoError(t, err)
	q := resource.MergeIdentity(nil, inv.ID, "")

	_, err = p.Invoices.Pay(ctx, meta, q, PaymentInput{Amount: 0, Method: "cash"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)

	got, err := p.Invoices.Pay(ctx, meta, q, PaymentInput{Amount: 40, Method: "card"})
	require.NoError(t, err)
	require.Equal(t, 40.0, got.Paid)
	require.Equal(t, StatusOpen, got.Status)
	require.Len(t, got.Payments, 1)
	require.Equal(t, "cashier", got.Payments[0].PaidBy)

	got, err = p.Invoices.Pay(ctx, meta, q, PaymentInput{Amount: 60, Method: "transfer", Reference: "TX-9"})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
	require.Len(t, got.Payments, 2)

	_, err = p.Invoices.Pay(ctx, meta, q, PaymentInput{Amount: 1, Method: "cash"})
	require.ErrorIs(t, err, resource.ErrWrongState)

	_, err = p.Invoices.Pay(ctx, meta, resource.MergeIdentity(nil, "missing", ""), PaymentInput{Amount: 1, Method: "cash"})
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestInvoices_PayCancelled(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(memory.New())
	inv, err := p.Invoices.Create(ctx, meta, &Invoice{Number: "F-3", Customer: "acme", Currency: "USD", Total: 10, Status: StatusCancelled})
	require.NoError(t, err)
	_, err = p.Invoices.Pay(ctx, meta, resource.MergeIdentity(nil, inv.ID, ""), PaymentInput{Amount: 10, Method: "cash"})
	require.ErrorIs(t, err, resource.ErrWrongState)
}
