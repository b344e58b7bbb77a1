package crud

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

type note struct {
	resource.Core
	Title  string `json:"title" validate:"required,max=32"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
}

func notesDef(p resource.Provider[note]) Definition[note] {
	return Definition[note]{
		Name:     "notes",
		Domain:   "test",
		Path:     "/test/notes",
		Entity:   "Note",
		Provider: p,
		Actions: []Action{{
			Name:    "publish",
			Method:  http.MethodPost,
			Pattern: "/{id}/publish",
			Field:   "publishNoteById",
			Verb:    "publish",
			Write:   true,
			Args:    ArgID,
			Handle: func(ctx context.Context, meta resource.Metadata, in Input) (any, error) {
				c := p.(*resource.Collection[note])
				n, err := c.Modify(ctx, meta, OwnedQuery(ctx, resource.MergeIdentity(nil, in.ID, in.Ref)), func(n *note) error {
					n.Status = "published"
					return nil
				})
				if err != nil {
					return nil, err
				}
				return resource.NewData(n), nil
			},
		}},
	}
}

type caller struct {
	sub    string
	scopes []string
	perms  []string
}

func (c caller) withMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := resource.WithMetadata(r.Context(), resource.Metadata{
			Tenant: "t1", Subject: c.sub, Scopes: c.scopes, Perms: c.perms,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type harness struct {
	t   *testing.T
	res *Resource[note]
}

func newHarness(t *testing.T, def func(resource.Provider[note]) Definition[note]) *harness {
	coll := resource.NewCollection[note]("notes", memory.New().Collection("notes"))
	return &harness{t: t, res: New(def(coll), Options{})}
}

func (h *harness) do(c caller, method, target, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	r := chi.NewRouter()
	r.Use(c.withMeta)
	r.Route(h.res.Path(), func(sub chi.Router) { h.res.Mount(sub, MountOptions{Audit: true}) })

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type dataBody struct {
	Data note `json:"data"`
}

type errBody struct {
	Code string `json:"code"`
}

var admin = caller{sub: "admin", scopes: []string{"root"}, perms: []string{"*:test.notes"}}

func TestOperations_PairsMatchVerbs(t *testing.T) {
	h := newHarness(t, notesDef)
	seen := map[string]bool{}
	for _, op := range h.res.Operations() {
		seen[op.Name] = true
		require.Equal(t, policy.Resource("test.notes"), op.Pair.Resource, op.Name)
		if want := ActionOf(op.Name); want != "" {
			require.Equal(t, want, op.Pair.Action, op.Name)
			require.Equal(t, policy.LevelOf(want), op.Level, op.Name)
			require.Equal(t, want != policy.Read, op.Write, op.Name)
		}
	}
	for _, name := range Canonical {
		require.True(t, seen[name], name)
	}
	destroy, ok := h.res.Operation(OpDestroyOne)
	require.True(t, ok)
	require.Equal(t, policy.LevelManage, destroy.Level)

	publish, ok := h.res.Operation("publish")
	require.True(t, ok)
	require.Equal(t, policy.Action("publish"), publish.Pair.Action)
	require.Equal(t, policy.LevelWrite, publish.Level)
}

func TestOperations_GraphQLFields(t *testing.T) {
	h := newHarness(t, notesDef)
	fields := map[string]string{}
	for _, op := range h.res.Operations() {
		fields[op.Name] = op.Field
	}
	require.Equal(t, "countNotes", fields[OpCount])
	require.Equal(t, "createNote", fields[OpCreate])
	require.Equal(t, "createNotes", fields[OpCreateBulk])
	require.Equal(t, "findNoteById", fields[OpFindOne])
	require.Equal(t, "updateNotes", fields[OpUpdateBulk])
	require.Empty(t, fields[OpCursor])
}

func TestCRUD_CreateFindCount(t *testing.T) {
	h := newHarness(t, notesDef)

	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"title":"a"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[dataBody](t, rr).Data
	require.NotEmpty(t, created.ID)
	require.Equal(t, "admin", created.Owner)
	require.Equal(t, "t1", created.Tenant)

	rr = h.do(admin, http.MethodPost, "/test/notes/bulk", `{"items":[{"title":"b"},{"title":"c","status":"draft"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = h.do(admin, http.MethodGet, "/test/notes/count", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"total":3}`, rr.Body.String())

	rr = h.do(admin, http.MethodGet, "/test/notes/?sort=title&limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody[struct {
		Items []note           `json:"items"`
		Meta  resource.PageMeta `json:"meta"`
	}](t, rr)
	require.Len(t, page.Items, 2)
	require.Equal(t, "a", page.Items[0].Title)
	require.Equal(t, resource.PageMeta{Limit: 2, Count: 2}, page.Meta)

	rr = h.do(admin, http.MethodGet, "/test/notes/"+created.ID+"?fields=title", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"id":"`+created.ID+`","title":"a"}}`, rr.Body.String())
}

func TestCRUD_Validation(t *testing.T) {
	h := newHarness(t, notesDef)

	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"status":"draft"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeBody[errBody](t, rr).Code)

	rr = h.do(admin, http.MethodPost, "/test/notes/", `{"title":"x","color":"red"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "INVALID_JSON", decodeBody[errBody](t, rr).Code)

	rr = h.do(admin, http.MethodPost, "/test/notes/", `{"title":"x"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody[dataBody](t, rr).Data.ID

	rr = h.do(admin, http.MethodPatch, "/test/notes/"+id, `{"status":"archived"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeBody[errBody](t, rr).Code)

	rr = h.do(admin, http.MethodPatch, "/test/notes/"+id, `{"owner":"mallory"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(admin, http.MethodPatch, "/test/notes/"+id, `{"status":"published"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "published", decodeBody[dataBody](t, rr).Data.Status)

	rr = h.do(admin, http.MethodPatch, "/test/notes/bulk", `{"query":{"status":"published"},"data":{"title":"y"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"total":1}`, rr.Body.String())
}

func TestCRUD_SoftDeleteTriad(t *testing.T) {
	h := newHarness(t, notesDef)
	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"title":"x"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody[dataBody](t, rr).Data.ID
	item := "/test/notes/" + id

	rr = h.do(admin, http.MethodDelete, item, "")
	require.Equal(t, http.StatusOK, rr.Code)
	deleted := decodeBody[dataBody](t, rr).Data
	require.NotNil(t, deleted.DeletedAt)
	require.Equal(t, "admin", deleted.DeletedBy)

	require.Equal(t, http.StatusNotFound, h.do(admin, http.MethodGet, item, "").Code)
	require.Equal(t, http.StatusNotFound, h.do(admin, http.MethodDelete, item, "").Code)

	rr = h.do(admin, http.MethodPut, item+"/restore", "")
	require.Equal(t, http.StatusOK, rr.Code)
	restored := decodeBody[dataBody](t, rr).Data
	require.Nil(t, restored.DeletedAt)
	require.NotNil(t, restored.RestoredAt)
	require.Equal(t, http.StatusOK, h.do(admin, http.MethodGet, item, "").Code)

	// destroy exige su propio permiso y scope manage
	writer := caller{sub: "w", scopes: []string{"test:write"}, perms: []string{"delete:test.notes", "restore:test.notes"}}
	rr = h.do(writer, http.MethodDelete, item+"/destroy", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "INSUFFICIENT_SCOPES", decodeBody[errBody](t, rr).Code)

	manager := caller{sub: "m", scopes: []string{"test:manage"}, perms: []string{"delete:test.notes"}}
	rr = h.do(manager, http.MethodDelete, item+"/destroy", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "POLICY_DENIED", decodeBody[errBody](t, rr).Code)

	rr = h.do(admin, http.MethodDelete, item+"/destroy", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, http.StatusNotFound, h.do(admin, http.MethodPut, item+"/restore", "").Code)
	require.Equal(t, http.StatusNotFound, h.do(admin, http.MethodGet, item, "").Code)
}

func TestCRUD_OwnPermissions(t *testing.T) {
	h := newHarness(t, notesDef)
	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"title":"admin's"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	foreign := decodeBody[dataBody](t, rr).Data.ID

	alice := caller{sub: "alice", scopes: []string{"test:write"}, perms: []string{"create:test.notes:own", "read:test.notes:own", "update:test.notes:own"}}
	rr = h.do(alice, http.MethodPost, "/test/notes/", `{"title":"mine","owner":"admin"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	mine := decodeBody[dataBody](t, rr).Data
	require.Equal(t, "alice", mine.Owner)

	rr = h.do(alice, http.MethodGet, "/test/notes/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decodeBody[struct {
		Items []note `json:"items"`
	}](t, rr)
	require.Len(t, page.Items, 1)
	require.Equal(t, mine.ID, page.Items[0].ID)

	require.JSONEq(t, `{"total":1}`, h.do(alice, http.MethodGet, "/test/notes/count", "").Body.String())
	require.Equal(t, http.StatusNotFound, h.do(alice, http.MethodGet, "/test/notes/"+foreign, "").Code)
	require.Equal(t, http.StatusForbidden, h.do(alice, http.MethodDelete, "/test/notes/"+mine.ID, "").Code)

	rr = h.do(alice, http.MethodPost, "/test/notes/"+mine.ID+"/publish", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	alice.perms = append(alice.perms, "publish:test.notes:own")
	require.Equal(t, http.StatusNotFound, h.do(alice, http.MethodPost, "/test/notes/"+foreign+"/publish", "").Code)
	rr = h.do(alice, http.MethodPost, "/test/notes/"+mine.ID+"/publish", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "published", decodeBody[dataBody](t, rr).Data.Status)
}

func TestCRUD_OwnWithPageAndFields(t *testing.T) {
	h := newHarness(t, notesDef)
	for _, title := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, h.do(admin, http.MethodPost, "/test/notes/", `{"title":"`+title+`"}`).Code)
	}
	alice := caller{sub: "alice", scopes: []string{"test:write"}, perms: []string{"create:test.notes:own", "read:test.notes:own"}}
	rr := h.do(alice, http.MethodPost, "/test/notes/", `{"title":"z"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	mine := decodeBody[dataBody](t, rr).Data

	type page struct {
		Items []map[string]any  `json:"items"`
		Meta  resource.PageMeta `json:"meta"`
	}

	rr = h.do(alice, http.MethodGet, "/test/notes/?sort=title&limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	p := decodeBody[page](t, rr)
	require.Len(t, p.Items, 1)
	require.Equal(t, mine.ID, p.Items[0]["id"])
	require.Equal(t, 1, p.Meta.Count)
	require.JSONEq(t, `{"total":1}`, h.do(alice, http.MethodGet, "/test/notes/count", "").Body.String())

	rr = h.do(alice, http.MethodGet, "/test/notes/?fields=title", "")
	require.Equal(t, http.StatusOK, rr.Code)
	p = decodeBody[page](t, rr)
	require.Len(t, p.Items, 1)
	require.Equal(t, "z", p.Items[0]["title"])
	require.NotContains(t, p.Items[0], "owner")

	rr = h.do(alice, http.MethodGet, "/test/notes/cursor?fields=title", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var data []string
	sc := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimPrefix(line, "data:"))
		}
	}
	require.Len(t, data, 2)
	require.JSONEq(t, `{"id":"`+mine.ID+`","title":"z"}`, data[0])
	require.JSONEq(t, `{"count":1}`, data[1])
}

func TestCRUD_AuditCarriesCreatedIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := logger.L()
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(prev) })

	h := newHarness(t, notesDef)
	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"title":"a"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[dataBody](t, rr).Data

	rr = h.do(admin, http.MethodPost, "/test/notes/bulk", `{"items":[{"title":"b"},{"title":"c"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	bulk := decodeBody[struct {
		Items []note `json:"items"`
	}](t, rr).Items
	require.Len(t, bulk, 2)

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 2)
	require.Equal(t, created.ID, entries[0].ContextMap()["entity_id"])
	require.Equal(t, bulk[0].ID+","+bulk[1].ID, entries[1].ContextMap()["entity_id"])
}

func TestCRUD_Disabled(t *testing.T) {
	h := newHarness(t, func(p resource.Provider[note]) Definition[note] {
		d := notesDef(p)
		d.Disabled = []string{OpUpdateBulk, OpDestroyOne}
		return d
	})
	_, ok := h.res.Operation(OpUpdateBulk)
	require.False(t, ok)
	rr := h.do(admin, http.MethodDelete, "/test/notes/x/destroy", "")
	require.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rr.Code)
}

func TestCRUD_Shape(t *testing.T) {
	h := newHarness(t, func(p resource.Provider[note]) Definition[note] {
		d := notesDef(p)
		d.Shape = func(n *note) any { return map[string]string{"id": n.ID, "title": strings.ToUpper(n.Title)} }
		return d
	})
	rr := h.do(admin, http.MethodPost, "/test/notes/", `{"title":"abc"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ABC", body.Data["title"])
	require.NotContains(t, body.Data, "owner")
}

func TestCRUD_CursorStream(t *testing.T) {
	h := newHarness(t, notesDef)
	for _, title := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, h.do(admin, http.MethodPost, "/test/notes/", `{"title":"`+title+`"}`).Code)
	}
	rr := h.do(admin, http.MethodGet, "/test/notes/cursor?sort=title", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	var data, events []string
	sc := bufio.NewScanner(strings.NewReader(rr.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line, "data:"))
		case strings.HasPrefix(line, "event:"):
			events = append(events, strings.TrimPrefix(line, "event:"))
		}
	}
	require.Len(t, data, 4)
	require.Equal(t, []string{"close"}, events)
	require.JSONEq(t, `{"count":3}`, data[3])
}

func TestOperation_InvokeWithoutTransport(t *testing.T) {
	h := newHarness(t, notesDef)
	op, ok := h.res.Operation(OpCreate)
	require.True(t, ok)

	ctx := resource.WithMetadata(context.Background(), resource.Metadata{
		Tenant: "t1", Subject: "bob", Scopes: []string{"test:read"}, Perms: []string{"create:test.notes"},
	})
	_, err := op.Authorize(ctx)
	require.Error(t, err)

	ctx = resource.WithMetadata(context.Background(), resource.Metadata{
		Tenant: "t1", Subject: "bob", Scopes: []string{"test:write"}, Perms: []string{"create:test.notes"},
	})
	ctx, err = op.Authorize(ctx)
	require.NoError(t, err)
	out, err := op.Invoke(ctx, "test", Input{Data: json.RawMessage(`{"title":"z"}`)})
	require.NoError(t, err)
	require.Equal(t, "bob", out.(resource.DataSerializer[note]).Data.Owner)

	cursor, ok := h.res.Operation(OpCursor)
	require.True(t, ok)
	_, err = cursor.Invoke(ctx, "test", Input{})
	require.Error(t, err)
}
