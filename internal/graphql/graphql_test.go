package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	"github.com/wenex-org/platform-sub000/internal/rate"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

type task struct {
	resource.Core
	Title string `json:"title" validate:"required"`
	Done  bool   `json:"done,omitempty"`
}

func tasks() crud.Module {
	coll := resource.NewCollection[task]("tasks", memory.New().Collection("tasks"))
	return crud.New(crud.Definition[task]{
		Name:     "tasks",
		Domain:   "work",
		Path:     "/work/tasks",
		Entity:   "Task",
		Provider: coll,
	}, crud.Options{})
}

type response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func run(t *testing.T, h http.Handler, meta resource.Metadata, query string, vars map[string]any) response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(resource.WithMetadata(context.Background(), meta))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestSchema_CRUDRoundTrip(t *testing.T) {
	schema, err := Build([]crud.Module{tasks()}, "test")
	require.NoError(t, err)
	h := Handler(schema, 0)
	writer := resource.Metadata{Tenant: "t", Subject: "u1", Scopes: []string{"work:write"}, Perms: []string{"*:work.tasks"}}

	res := run(t, h, writer, `mutation($d: JSON!) { createTask(data: $d) }`, map[string]any{"d": map[string]any{"title": "write tests"}})
	require.Empty(t, res.Errors)
	var created struct {
		Data task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Data["createTask"], &created))
	require.NotEmpty(t, created.Data.ID)
	require.Equal(t, "u1", created.Data.Owner)

	res = run(t, h, writer, `query($id: ID!) { findTaskById(id: $id) }`, map[string]any{"id": created.Data.ID})
	require.Empty(t, res.Errors)
	require.Contains(t, string(res.Data["findTaskById"]), `"title":"write tests"`)

	res = run(t, h, writer, `{ countTasks(filter: {query: {title: "write tests"}}) }`, nil)
	require.Empty(t, res.Errors)
	require.JSONEq(t, `{"total":1}`, string(res.Data["countTasks"]))

	res = run(t, h, writer, `mutation { createTasks(items: [{title: "a"}, {title: "b"}]) }`, nil)
	require.Empty(t, res.Errors)

	res = run(t, h, writer, `mutation($f: JSON, $d: JSON!) { updateTasks(filter: $f, data: $d) }`, map[string]any{
		"f": map[string]any{"query": map[string]any{"done": map[string]any{"$exists": false}}},
		"d": map[string]any{"done": true},
	})
	require.Empty(t, res.Errors)
	require.JSONEq(t, `{"total":3}`, string(res.Data["updateTasks"]))
}

func TestSchema_ErrorsCarryCode(t *testing.T) {
	schema, err := Build([]crud.Module{tasks()}, "test")
	require.NoError(t, err)
	h := Handler(schema, 0)

	reader := resource.Metadata{Tenant: "t", Subject: "u1", Scopes: []string{"work:read"}, Perms: []string{"read:work.tasks"}}
	res := run(t, h, reader, `mutation { createTask(data: {title: "x"}) }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "INSUFFICIENT_SCOPES", res.Errors[0].Extensions["code"])

	writer := resource.Metadata{Tenant: "t", Subject: "u1", Scopes: []string{"work:write"}, Perms: []string{"read:work.tasks"}}
	res = run(t, h, writer, `mutation { createTask(data: {title: "x"}) }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "POLICY_DENIED", res.Errors[0].Extensions["code"])

	res = run(t, h, reader, `{ findTaskById(id: "missing") }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "NOT_FOUND", res.Errors[0].Extensions["code"])
	require.EqualValues(t, http.StatusNotFound, res.Errors[0].Extensions["status"])
}

func TestSchema_SharesModuleRateLimit(t *testing.T) {
	m := tasks()
	limiters := rate.NewPool(func(p rate.Policy) rate.Limiter { return rate.NewMemoryLimiter(p) })
	m.Mount(chi.NewRouter(), crud.MountOptions{Limiters: limiters, Rate: rate.Policy{Max: 1, Window: time.Minute}})

	schema, err := Build([]crud.Module{m}, "test")
	require.NoError(t, err)
	h := Handler(schema, 0)
	reader := resource.Metadata{Tenant: "t", Subject: "u1", IP: "10.0.0.1", Scopes: []string{"work:read"}, Perms: []string{"read:work.tasks"}}

	res := run(t, h, reader, `{ countTasks }`, nil)
	require.Empty(t, res.Errors)

	res = run(t, h, reader, `{ countTasks }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", res.Errors[0].Extensions["code"])

	// otro tenant tiene su propio contador
	other := reader
	other.Tenant = "t2"
	res = run(t, h, other, `{ countTasks }`, nil)
	require.Empty(t, res.Errors)
}

func TestBuild_RejectsDuplicateFields(t *testing.T) {
	_, err := Build([]crud.Module{tasks(), tasks()}, "test")
	require.Error(t, err)
}

func TestFields_SkipsStreams(t *testing.T) {
	fields := Fields([]crud.Module{tasks()})
	require.Contains(t, fields, "query findTasks")
	require.Contains(t, fields, "mutation destroyTaskById")
	for _, f := range fields {
		require.NotContains(t, f, "cursor")
	}
}

func TestHandler_RequiresQuery(t *testing.T) {
	schema, err := Build(nil, "test")
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	Handler(schema, 0).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	Handler(schema, 0).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bversion%7D", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"version":"test"`)
}

func TestHandler_RejectsMutationOverGet(t *testing.T) {
	schema, err := Build([]crud.Module{tasks()}, "test")
	require.NoError(t, err)
	h := Handler(schema, 0)
	writer := resource.Metadata{Tenant: "t", Subject: "u1", Scopes: []string{"work:write"}, Perms: []string{"*:work.tasks"}}

	get := func(rawQuery string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/graphql?"+rawQuery, nil)
		req = req.WithContext(resource.WithMetadata(context.Background(), writer))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	q := url.Values{"query": {`mutation { createTask(data: {title: "x"}) }`}}
	rr := get(q.Encode())
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, http.MethodPost, rr.Header().Get("Allow"))

	// el documento trae ambas; sólo se ejecuta la query nombrada
	q = url.Values{
		"query":         {`query Count { countTasks } mutation Add { createTask(data: {title: "x"}) }`},
		"operationName": {"Count"},
	}
	rr = get(q.Encode())
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"countTasks":{"total":0}}}`, rr.Body.String())

	q.Set("operationName", "Add")
	require.Equal(t, http.StatusMethodNotAllowed, get(q.Encode()).Code)

	res := run(t, h, writer, `mutation { createTask(data: {title: "x"}) }`, nil)
	require.Empty(t, res.Errors)
}
