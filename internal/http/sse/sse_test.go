package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

type doc struct {
	resource.Core
	Name string `json:"name"`
}

func produce(items []*doc, end error) resource.Producer[doc] {
	return func(ctx context.Context, emit func(*doc) error) error {
		for _, it := range items {
			if err := emit(it); err != nil {
				return err
			}
		}
		return end
	}
}

func run(t *testing.T, ctx context.Context, p resource.Producer[doc], opts Options[doc]) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/cursor", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	Pipe(rr, req, resource.NewStream(ctx, p), opts)
	require.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
	return rr.Body.String()
}

func terminals(body string) (errs, closes int) {
	return strings.Count(body, "event:"+EventError), strings.Count(body, "event:"+EventClose)
}

func TestPipe_Completes(t *testing.T) {
	items := []*doc{{Core: resource.Core{ID: "a"}, Name: "x"}, {Core: resource.Core{ID: "b"}, Name: "y"}}
	body := run(t, context.Background(), produce(items, nil), Options[doc]{})

	require.Contains(t, body, "id:a\n")
	require.Contains(t, body, `"name":"y"`)
	errs, closes := terminals(body)
	require.Zero(t, errs)
	require.Equal(t, 1, closes)
	require.True(t, strings.Index(body, "id:b") < strings.Index(body, "event:close"), "close va al final")
}

func TestPipe_ErrorIsSingleTerminal(t *testing.T) {
	items := []*doc{{Core: resource.Core{ID: "a"}}}
	body := run(t, context.Background(), produce(items, resource.ErrNotFound), Options[doc]{})

	errs, closes := terminals(body)
	require.Equal(t, 1, errs)
	require.Zero(t, closes)
	require.Contains(t, body, `"code":"NOT_FOUND"`)
}

func TestPipe_KeepDropsItems(t *testing.T) {
	items := []*doc{{Core: resource.Core{ID: "mine", Owner: "u1"}}, {Core: resource.Core{ID: "theirs", Owner: "u2"}}}
	body := run(t, context.Background(), produce(items, nil), Options[doc]{
		Keep: func(d *doc) bool { return d.Owner == "u1" },
	})
	require.Contains(t, body, "id:mine")
	require.NotContains(t, body, "id:theirs")
	require.Contains(t, body, `{"count":1}`)
}

func TestPipe_DisconnectWritesNoTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan struct{})
	p := func(ctx context.Context, emit func(*doc) error) error {
		if err := emit(&doc{Core: resource.Core{ID: "a"}}); err != nil {
			return err
		}
		close(blocked)
		<-ctx.Done()
		return errors.New("interrupted")
	}
	go func() {
		<-blocked
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	body := run(t, ctx, p, Options[doc]{})

	errs, closes := terminals(body)
	require.Zero(t, errs+closes)
	require.Contains(t, body, "id:a")
}
