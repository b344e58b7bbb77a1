package essential

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

var meta = resource.Metadata{Tenant: "t1", Subject: "ops"}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*Sagas, *memory.Backend, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := memory.New()
	p := newProvider(b, Config{DefaultTTL: 30 * time.Second, MaxTTL: time.Minute}, clk.now, resource.WithClock(clk.now))
	return p.Sagas, b, clk
}

func byID(id string) resource.Query { return resource.MergeIdentity(nil, id, "") }

func TestStart_TTL(t *testing.T) {
	sagas, _, clk := setup(t)
	ctx := context.Background()

	s, err := sagas.Start(ctx, meta, StartInput{})
	require.NoError(t, err)
	require.Equal(t, StateStarted, s.State)
	require.EqualValues(t, 30, s.TTL)
	require.Equal(t, clk.now().Add(30*time.Second), s.ExpiresAt)
	require.NotEmpty(t, s.Session)
	require.Equal(t, "ops", s.Owner)
	require.Equal(t, 1, sagas.Held())

	_, err = sagas.Start(ctx, meta, StartInput{TTL: 120})
	require.ErrorIs(t, err, resource.ErrInvalidInput)
}

func TestCommit_KeepsWrites(t *testing.T) {
	sagas, b, _ := setup(t)
	ctx := context.Background()
	orders := b.Collection("orders")

	s, err := sagas.Start(ctx, meta, StartInput{TTL: 10})
	require.NoError(t, err)
	sess, err := sagas.Session(ctx, meta, s.ID)
	require.NoError(t, err)
	require.NoError(t, orders.Insert(resource.WithSession(ctx, sess), "t1", resource.Document{"id": "o1"}))

	closedFor := ""
	sagas.OnClose(func(_ context.Context, tenant string) { closedFor = tenant })

	done, err := sagas.Commit(ctx, meta, byID(s.ID))
	require.NoError(t, err)
	require.Equal(t, StateCommitted, done.State)
	require.NotNil(t, done.ClosedAt)
	require.Equal(t, "t1", closedFor)
	require.Zero(t, sagas.Held())

	n, _ := orders.Count(ctx, "t1", nil)
	require.EqualValues(t, 1, n)

	// cerrada: ni otro cierre ni nuevas sesiones
	_, err = sagas.Abort(ctx, meta, byID(s.ID))
	require.ErrorIs(t, err, resource.ErrWrongState)
	_, err = sagas.Session(ctx, meta, s.ID)
	require.ErrorIs(t, err, resource.ErrWrongState)
}

func TestAbort_UndoesWritesButKeepsSaga(t *testing.T) {
	sagas, b, _ := setup(t)
	ctx := context.Background()
	orders := b.Collection("orders")

	s, err := sagas.Start(ctx, meta, StartInput{})
	require.NoError(t, err)
	sess, err := sagas.Session(ctx, meta, s.ID)
	require.NoError(t, err)
	sctx := resource.WithSession(ctx, sess)
	require.NoError(t, orders.Insert(sctx, "t1", resource.Document{"id": "o1"}))

	// la escritura del documento de control dentro del ctx de la saga no se
	// deshace con el rollback
	_, err = sagas.Add(sctx, meta, byID(s.ID), StageInput{Collection: "orders", Action: "create", EntityID: "o1"})
	require.NoError(t, err)

	done, err := sagas.Abort(sctx, meta, byID(s.ID))
	require.NoError(t, err)
	require.Equal(t, StateAborted, done.State)
	require.Len(t, done.Stages, 1)
	require.Equal(t, "ops", done.Stages[0].AddedBy)

	n, _ := orders.Count(ctx, "t1", nil)
	require.Zero(t, n)
}

func TestAdd_Validation(t *testing.T) {
	sagas, _, _ := setup(t)
	ctx := context.Background()
	s, err := sagas.Start(ctx, meta, StartInput{})
	require.NoError(t, err)

	_, err = sagas.Add(ctx, meta, byID(s.ID), StageInput{Action: "create"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)
	_, err = sagas.Add(ctx, meta, byID("missing"), StageInput{Collection: "x", Action: "create"})
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestSession_TenantIsolation(t *testing.T) {
	sagas, _, _ := setup(t)
	ctx := context.Background()
	s, err := sagas.Start(ctx, meta, StartInput{})
	require.NoError(t, err)

	_, err = sagas.Session(ctx, resource.Metadata{Tenant: "t2", Subject: "x"}, s.ID)
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = sagas.Commit(ctx, resource.Metadata{Tenant: "t2", Subject: "x"}, byID(s.ID))
	require.ErrorIs(t, err, resource.ErrNotFound)
	_, err = sagas.Session(ctx, meta, "missing")
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestSweep_ExpiresAndRollsBack(t *testing.T) {
	sagas, b, clk := setup(t)
	ctx := context.Background()
	orders := b.Collection("orders")

	s, err := sagas.Start(ctx, meta, StartInput{TTL: 5})
	require.NoError(t, err)
	keep, err := sagas.Start(ctx, meta, StartInput{TTL: 50})
	require.NoError(t, err)
	sess, err := sagas.Session(ctx, meta, s.ID)
	require.NoError(t, err)
	require.NoError(t, orders.Insert(resource.WithSession(ctx, sess), "t1", resource.Document{"id": "o1"}))

	require.Zero(t, sagas.Sweep(ctx))

	clk.advance(6 * time.Second)
	_, err = sagas.Session(ctx, meta, s.ID)
	require.ErrorIs(t, err, resource.ErrWrongState)

	require.Equal(t, 1, sagas.Sweep(ctx))
	require.Equal(t, 1, sagas.Held())

	got, err := sagas.FindOne(ctx, meta, resource.FilterOne{Query: byID(s.ID)})
	require.NoError(t, err)
	require.Equal(t, StateExpired, got.State)
	n, _ := orders.Count(ctx, "t1", nil)
	require.Zero(t, n)

	_, err = sagas.Commit(ctx, meta, byID(s.ID))
	require.ErrorIs(t, err, resource.ErrWrongState)
	_, err = sagas.Commit(ctx, meta, byID(keep.ID))
	require.NoError(t, err)
}

func TestRun_AbortsOpenSagasOnShutdown(t *testing.T) {
	sagas, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := sagas.Start(ctx, meta, StartInput{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sagas.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	require.Zero(t, sagas.Held())
	got, err := sagas.FindOne(context.Background(), meta, resource.FilterOne{Query: byID(s.ID)})
	require.NoError(t, err)
	require.Equal(t, StateAborted, got.State)
}
