package crud

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	mw "github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/http/sse"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

const transportREST = "rest"

// MountOptions configura las cadenas por operación.
type MountOptions struct {
	// Limiters entrega un limiter por política; nil desactiva el rate limit.
	Limiters *rate.Pool
	// Rate es la política por defecto cuando el módulo no declara una.
	Rate  rate.Policy
	Audit bool
}

// Mount registra las operaciones del módulo en r (ya montado en su path).
// Cada operación tiene su cadena: scope → policy → rate → audit. El limiter
// queda también en la operación para los resolvers GraphQL.
func (r *Resource[E]) Mount(router chi.Router, opts MountOptions) {
	var limiter rate.Limiter
	if opts.Limiters != nil {
		pol := opts.Rate
		if r.def.Rate != nil {
			pol = *r.def.Rate
		}
		limiter = opts.Limiters.For(pol)
	}
	group := r.def.Domain + "." + r.def.Name

	for _, op := range r.ops {
		op.limiter, op.group = limiter, group
		chain := []mw.Middleware{
			mw.RequireScope(op.Domain, op.Level),
			mw.RequirePolicy(op.Pair),
		}
		if limiter != nil {
			chain = append(chain, mw.WithRateLimit(mw.RateLimitConfig{Limiter: limiter, Group: group}))
		}
		if opts.Audit && op.Write {
			chain = append(chain, mw.WithAudit(op.Pair))
		}
		router.With(mw.Use(chain...)...).Method(op.Method, op.Pattern, r.handler(op))
	}
}

func (r *Resource[E]) handler(op *Operation) http.HandlerFunc {
	if op.serve != nil {
		return op.serve
	}
	return func(w http.ResponseWriter, req *http.Request) {
		in, err := r.restInput(w, req, op)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		out, err := op.Invoke(req.Context(), transportREST, in)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		helpers.WriteJSON(w, op.Status, out)
	}
}

// restInput extrae de la ruta, el query string y el body lo que la
// operación declara en Args.
func (r *Resource[E]) restInput(w http.ResponseWriter, req *http.Request, op *Operation) (Input, error) {
	var in Input
	q := req.URL.Query()
	if op.Args.Has(ArgID) {
		in.ID = strings.TrimSpace(chi.URLParam(req, "id"))
		if in.ID == "" {
			return in, httperrors.ErrMissingID
		}
		in.Ref = strings.TrimSpace(q.Get("ref"))
	}
	if len(op.Params) > 0 {
		in.Params = q
	}

	needsBody := op.Args.Has(ArgData) || op.Args.Has(ArgItems) || op.Args.Has(ArgBodyQuery)
	if op.Args.Has(ArgFilter) && !op.Args.Has(ArgBodyQuery) {
		f, err := helpers.ParseFilter(q)
		if err != nil {
			return in, err
		}
		in.Filter = f
	}
	if !needsBody {
		return in, nil
	}

	raw, err := helpers.ReadBody(w, req, r.opts.MaxBody)
	if err != nil {
		return in, err
	}
	switch {
	case op.Args.Has(ArgBodyQuery):
		var body struct {
			Query resource.Query  `json:"query"`
			Data  json.RawMessage `json:"data"`
		}
		if err := helpers.DecodeStrict(raw, &body); err != nil {
			return in, err
		}
		in.Filter.Query = body.Query
		in.Data = body.Data
	case op.Args.Has(ArgItems):
		var body struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := helpers.DecodeStrict(raw, &body); err != nil {
			return in, err
		}
		in.Items = body.Items
	default:
		in.Data = raw
	}
	return in, nil
}

// serveCursor abre el stream y lo escribe como SSE. Los errores previos al
// primer mensaje se responden como JSON normal.
func (r *Resource[E]) serveCursor(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	meta, err := metadata(ctx)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	f, err := helpers.ParseFilter(req.URL.Query())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	f, strip := ownedFilter(ctx, f)
	stream, err := r.ctrl.Cursor(ctx, meta, f)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	keep := Visible[E](ctx)
	if keep != nil && strip {
		visible := keep
		keep = func(e *E) bool {
			if !visible(e) {
				return false
			}
			stripOwner(e)
			return true
		}
	}
	sse.Pipe(w, req, stream, sse.Options[E]{Keep: keep, Shape: r.def.Shape})
}
