// Package router arma el handler HTTP del gateway: middlewares globales,
// health, métricas, GraphQL y un subárbol por módulo.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gql "github.com/graphql-go/graphql"

	"github.com/wenex-org/platform-sub000/internal/graphql"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	mw "github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

// Deps son las dependencias del router. Los campos opcionales en nil
// desactivan su parte (métricas, GraphQL, sagas, rate limit).
type Deps struct {
	Modules  []crud.Module
	Verifier mw.TokenVerifier
	Sagas    mw.SessionResolver

	Limiters *rate.Pool
	Rate     rate.Policy
	Audit    bool

	// Ready chequea las dependencias para /readyz (p.ej. ping al backend).
	Ready func(ctx context.Context) error

	Metrics     http.Handler
	MetricsPath string

	GraphQL     *gql.Schema
	GraphQLPath string

	CORSOrigins []string
	MaxBody     int64
	Version     string
}

// New retorna el handler del gateway.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	global := []mw.Middleware{
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
	}
	if d.Metrics != nil {
		global = append(global, mw.WithMetrics())
	}
	r.Use(mw.Use(global...)...)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ─── health ───
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": d.Version})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				logger.From(req.Context()).Warn("readiness check failed", logger.Layer("router"), logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail(err.Error()))
				return
			}
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}

	// todo lo que sigue requiere token; el header X-Saga-Id une el request
	// a la sesión de su saga
	authed := mw.Use(
		mw.RequireAuth(d.Verifier),
		mw.WithSaga(d.Sagas),
		mw.WithNoStore(),
	)

	if d.GraphQL != nil {
		path := d.GraphQLPath
		if path == "" {
			path = "/graphql"
		}
		h := graphql.Handler(*d.GraphQL, d.MaxBody)
		r.With(authed...).Method(http.MethodGet, path, h)
		r.With(authed...).Method(http.MethodPost, path, h)
	}

	opts := crud.MountOptions{Limiters: d.Limiters, Rate: d.Rate, Audit: d.Audit}
	for _, m := range d.Modules {
		m := m
		r.Route(m.Path(), func(sub chi.Router) {
			sub.Use(authed...)
			m.Mount(sub, opts)
		})
	}
	return r
}

// Routes lista "METHOD /path" de todos los módulos, en orden de montaje.
func Routes(mods []crud.Module) []string {
	var out []string
	for _, m := range mods {
		for _, op := range m.Operations() {
			pattern := op.Pattern
			if pattern == "/" {
				pattern = ""
			}
			out = append(out, op.Method+" "+m.Path()+pattern)
		}
	}
	return out
}
