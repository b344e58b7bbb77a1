package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/essential"
	"github.com/wenex-org/platform-sub000/internal/domain/touch"
	"github.com/wenex-org/platform-sub000/internal/graphql"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	jwtx "github.com/wenex-org/platform-sub000/internal/jwt"
	"github.com/wenex-org/platform-sub000/internal/modules"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

var secret = []byte("router-test-secret-0123456789abcdef")

type gateway struct {
	t      *testing.T
	srv    *httptest.Server
	issuer *jwtx.Issuer
}

func newGateway(t *testing.T, ready func(context.Context) error) *gateway {
	t.Helper()
	p := modules.NewProviders(memory.New(), essential.Config{DefaultTTL: time.Minute, MaxTTL: 5 * time.Minute}, touch.Options{})
	mods := modules.Build(p, crud.Options{})
	schema, err := graphql.Build(mods, "test")
	require.NoError(t, err)

	h := New(Deps{
		Modules:  mods,
		Verifier: &jwtx.Verifier{Iss: "gateway-test", Secret: secret},
		Sagas:    p.Essential.Sagas,
		Audit:    true,
		Ready:    ready,
		GraphQL:  &schema,
		Version:  "test",
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &gateway{t: t, srv: srv, issuer: jwtx.NewIssuer("gateway-test", secret)}
}

func (g *gateway) token(scopes []string, perms ...string) string {
	tok, _, err := g.issuer.IssueAccess(jwtx.AccessRequest{Subject: "alice", Tenant: "t1", Scopes: scopes, Perms: perms})
	require.NoError(g.t, err)
	return tok
}

type reply struct {
	status int
	body   map[string]any
}

func (r reply) data() map[string]any {
	d, _ := r.body["data"].(map[string]any)
	return d
}

func (g *gateway) do(method, path, token string, body any, headers ...string) reply {
	g.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(g.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, g.srv.URL+path, rd)
	require.NoError(g.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(g.t, err)
	defer resp.Body.Close()
	out := reply{status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(&out.body)
	return out
}

func TestGrants_EndToEnd(t *testing.T) {
	g := newGateway(t, nil)
	tok := g.token([]string{"auth:write"}, "*:auth.grants")

	created := g.do(http.MethodPost, "/auth/grants", tok, map[string]any{
		"subject": "bob", "action": "read", "object": "career.products",
	})
	require.Equal(t, http.StatusCreated, created.status)
	id, _ := created.data()["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "bob", created.data()["subject"])

	got := g.do(http.MethodGet, "/auth/grants/"+id, tok, nil)
	require.Equal(t, http.StatusOK, got.status)
	require.Equal(t, created.data(), got.data())

	deleted := g.do(http.MethodDelete, "/auth/grants/"+id, tok, nil)
	require.Equal(t, http.StatusOK, deleted.status)
	require.NotEmpty(t, deleted.data()["deleted_at"])

	gone := g.do(http.MethodGet, "/auth/grants/"+id, tok, nil)
	require.Equal(t, http.StatusNotFound, gone.status)
	require.Equal(t, "NOT_FOUND", gone.body["code"])

	restored := g.do(http.MethodPut, "/auth/grants/"+id+"/restore", tok, nil)
	require.Equal(t, http.StatusOK, restored.status)

	back := g.do(http.MethodGet, "/auth/grants/"+id, tok, nil)
	require.Equal(t, http.StatusOK, back.status)
	require.Equal(t, "bob", back.data()["subject"])
	require.Equal(t, created.data()["created_at"], back.data()["created_at"])

	// destroy pide el nivel manage del contexto
	destroy := g.do(http.MethodDelete, "/auth/grants/"+id+"/destroy", tok, nil)
	require.Equal(t, http.StatusForbidden, destroy.status)
	require.Equal(t, "INSUFFICIENT_SCOPES", destroy.body["code"])

	manager := g.token([]string{"auth:manage"}, "read:auth.grants", "delete:auth.grants", "restore:auth.grants")
	destroy = g.do(http.MethodDelete, "/auth/grants/"+id+"/destroy", manager, nil)
	require.Equal(t, http.StatusForbidden, destroy.status)
	require.Equal(t, "POLICY_DENIED", destroy.body["code"])

	admin := g.token([]string{"auth:manage"}, "*:auth.grants")
	destroy = g.do(http.MethodDelete, "/auth/grants/"+id+"/destroy", admin, nil)
	require.Equal(t, http.StatusOK, destroy.status)
	require.Equal(t, http.StatusNotFound, g.do(http.MethodGet, "/auth/grants/"+id, admin, nil).status)

	count := g.do(http.MethodGet, "/auth/grants/count", admin, nil)
	require.Equal(t, http.StatusOK, count.status)
	require.EqualValues(t, 0, count.body["total"])
}

func TestAuthErrors(t *testing.T) {
	g := newGateway(t, nil)

	missing := g.do(http.MethodGet, "/auth/grants", "", nil)
	require.Equal(t, http.StatusUnauthorized, missing.status)
	require.Equal(t, "TOKEN_MISSING", missing.body["code"])

	bad := g.do(http.MethodGet, "/auth/grants", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, bad.status)
	require.Equal(t, "TOKEN_INVALID", bad.body["code"])

	readOnly := g.token([]string{"auth:read"}, "*:auth.grants")
	denied := g.do(http.MethodPost, "/auth/grants", readOnly, map[string]any{"subject": "x", "action": "read", "object": "auth.grants"})
	require.Equal(t, http.StatusForbidden, denied.status)
	require.Equal(t, "INSUFFICIENT_SCOPES", denied.body["code"])

	unknown := g.do(http.MethodGet, "/nowhere", readOnly, nil)
	require.Equal(t, http.StatusNotFound, unknown.status)
}

func TestHealth(t *testing.T) {
	failing := errors.New("backend down")
	var fail atomic.Bool
	g := newGateway(t, func(context.Context) error {
		if fail.Load() {
			return failing
		}
		return nil
	})

	require.Equal(t, http.StatusOK, g.do(http.MethodGet, "/healthz", "", nil).status)
	require.Equal(t, http.StatusOK, g.do(http.MethodGet, "/readyz", "", nil).status)
	fail.Store(true)
	ready := g.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, ready.status)
	require.Equal(t, "SERVICE_UNAVAILABLE", ready.body["code"])
}

func TestSaga_AbortOverREST(t *testing.T) {
	g := newGateway(t, nil)
	tok := g.token([]string{"root"}, "*:*")

	start := g.do(http.MethodPost, "/essential/sagas/start", tok, map[string]any{"ttl": 60})
	require.Equal(t, http.StatusCreated, start.status)
	sagaID := start.data()["id"].(string)

	product := g.do(http.MethodPost, "/career/products", tok, map[string]any{
		"name": "Desk", "sku": "DESK-1", "price": 120,
	}, "X-Saga-Id", sagaID)
	require.Equal(t, http.StatusCreated, product.status)

	aborted := g.do(http.MethodPost, "/essential/sagas/"+sagaID+"/abort", tok, nil)
	require.Equal(t, http.StatusOK, aborted.status)
	require.Equal(t, "aborted", aborted.data()["state"])

	count := g.do(http.MethodGet, "/career/products/count", tok, nil)
	require.EqualValues(t, 0, count.body["total"])

	// la saga cerrada ya no acepta requests
	late := g.do(http.MethodGet, "/career/products", tok, nil, "X-Saga-Id", sagaID)
	require.Equal(t, http.StatusConflict, late.status)
	require.Equal(t, "WRONG_STATE", late.body["code"])

	unknown := g.do(http.MethodGet, "/career/products", tok, nil, "X-Saga-Id", "missing")
	require.Equal(t, http.StatusNotFound, unknown.status)
}

func TestGraphQL_Mounted(t *testing.T) {
	g := newGateway(t, nil)
	tok := g.token([]string{"root"}, "*:*")
	out := g.do(http.MethodPost, "/graphql", tok, map[string]any{"query": "{ version }"})
	require.Equal(t, http.StatusOK, out.status)
	require.Equal(t, "test", out.data()["version"])
}

func TestRoutes(t *testing.T) {
	p := modules.NewProviders(memory.New(), essential.Config{}, touch.Options{})
	routes := Routes(modules.Build(p, crud.Options{}))
	require.Contains(t, routes, "POST /auth/grants")
	require.Contains(t, routes, "DELETE /auth/grants/{id}/destroy")
	require.Contains(t, routes, "POST /financial/invoices/{id}/payment")
	require.Contains(t, routes, "GET /logistic/locations/address-lookup")
	require.NotContains(t, routes, "POST /essential/sagas")
}
