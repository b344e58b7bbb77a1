package crud

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/metrics"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

// Operation es una operación ya resuelta de un módulo: ruta REST, campo
// GraphQL y regla de policy.
type Operation struct {
	Module   string
	Name     string
	Method   string
	Pattern  string
	Field    string
	Mutation bool
	Pair     policy.Pair
	Domain   string
	Level    policy.Level
	Status   int
	Args     Args
	Params   []string
	Write    bool
	Stream   bool

	invoke func(ctx context.Context, in Input) (any, error)
	serve  http.HandlerFunc // sólo streams

	// los completa Mount; GraphQL usa el mismo limiter que REST
	limiter rate.Limiter
	group   string
}

// Authorize aplica scope, policy y rate limit de la operación, en el mismo
// orden que la cadena REST. Retorna el contexto con el policy.Permission
// calculado.
func (op *Operation) Authorize(ctx context.Context) (context.Context, error) {
	if err := middlewares.CheckScope(ctx, op.Domain, op.Level); err != nil {
		return ctx, err
	}
	ctx, err := middlewares.Authorize(ctx, op.Pair)
	if err != nil {
		return ctx, err
	}
	return ctx, middlewares.CheckRate(ctx, op.limiter, op.group)
}

// Invoke ejecuta la operación. El contexto debe venir autorizado.
func (op *Operation) Invoke(ctx context.Context, transport string, in Input) (any, error) {
	if op.invoke == nil {
		return nil, httperrors.ErrMethodNotAllowed.WithDetail(op.Name + " is only available as a stream")
	}
	start := time.Now()
	defer func() {
		metrics.OperationLatency.WithLabelValues(op.Module, op.Name, transport).Observe(time.Since(start).Seconds())
	}()
	return op.invoke(ctx, in)
}

// Route retorna "METHOD /pattern" relativo al módulo.
func (op *Operation) Route() string { return op.Method + " " + op.Pattern }

// Module es la vista sin tipo de un Resource[E]: lo que necesitan el router,
// el schema GraphQL y el comando routes.
type Module interface {
	Name() string
	Domain() string
	Path() string
	Entity() string
	Plural() string
	Resource() policy.Resource
	Operations() []*Operation
	Flush(ctx context.Context, tenant string) error
	Mount(router chi.Router, opts MountOptions)
}
