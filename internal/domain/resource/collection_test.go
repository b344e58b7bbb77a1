package resource_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store/memory"
)

type note struct {
	resource.Core
	Title string   `json:"title"`
	Score float64  `json:"score,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func newNotes(t *testing.T) *resource.Collection[note] {
	t.Helper()
	n := 0
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return resource.NewCollection[note]("notes", memory.New().Collection("notes"),
		resource.WithIDs(func() string { n++; return fmt.Sprintf("n%d", n) }),
		resource.WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }),
	)
}

var meta = resource.Metadata{Tenant: "t1", Subject: "alice"}

func TestCollection_CreateAssignsIdentity(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()

	got, err := c.Create(ctx, meta, &note{Title: "hola", Core: resource.Core{ID: "spoofed", Tenant: "evil"}})
	require.NoError(t, err)
	require.Equal(t, "n1", got.ID)
	require.Equal(t, "t1", got.Tenant)
	require.Equal(t, "alice", got.Owner)
	require.Equal(t, "alice", got.CreatedBy)
	require.NotNil(t, got.CreatedAt)
}

func TestCollection_TenantIsolation(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	_, err := c.Create(ctx, meta, &note{Title: "a"})
	require.NoError(t, err)

	other := resource.Metadata{Tenant: "t2", Subject: "bob"}
	n, err := c.Count(ctx, other, resource.QueryFilter{})
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = c.FindOne(ctx, other, resource.FilterOne{Query: resource.Query{"id": "n1"}})
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestCollection_SoftDeleteTriad(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	created, err := c.Create(ctx, meta, &note{Title: "keep", Tags: []string{"x"}})
	require.NoError(t, err)
	byID := resource.FilterOne{Query: resource.MergeIdentity(nil, created.ID, "")}

	before, err := c.FindOne(ctx, meta, byID)
	require.NoError(t, err)

	deleted, err := c.DeleteOne(ctx, meta, byID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)
	require.Equal(t, "alice", deleted.DeletedBy)

	_, err = c.FindOne(ctx, meta, byID)
	require.ErrorIs(t, err, resource.ErrNotFound)
	n, _ := c.Count(ctx, meta, resource.QueryFilter{})
	require.Zero(t, n)

	// borrar dos veces no encuentra nada vivo
	_, err = c.DeleteOne(ctx, meta, byID)
	require.ErrorIs(t, err, resource.ErrNotFound)

	restored, err := c.RestoreOne(ctx, meta, byID)
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)
	require.NotNil(t, restored.RestoredAt)

	after, err := c.FindOne(ctx, meta, byID)
	require.NoError(t, err)
	// igual al estado previo salvo la auditoría de restore
	after.RestoredAt, after.RestoredBy = nil, ""
	require.Equal(t, before, after)

	// restaurar algo vivo no aplica
	_, err = c.RestoreOne(ctx, meta, byID)
	require.ErrorIs(t, err, resource.ErrNotFound)
}

func TestCollection_DestroyRemovesDeletedOrLive(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	a, _ := c.Create(ctx, meta, &note{Title: "a"})
	b, _ := c.Create(ctx, meta, &note{Title: "b"})

	_, err := c.DeleteOne(ctx, meta, resource.FilterOne{Query: resource.MergeIdentity(nil, a.ID, "")})
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		gone, err := c.DestroyOne(ctx, meta, resource.FilterOne{Query: resource.MergeIdentity(nil, id, "")})
		require.NoError(t, err)
		require.Equal(t, id, gone.ID)

		_, err = c.RestoreOne(ctx, meta, resource.FilterOne{Query: resource.MergeIdentity(nil, id, "")})
		require.ErrorIs(t, err, resource.ErrNotFound)
	}
}

func TestCollection_UpdateOneAndBulk(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	items, err := c.CreateBulk(ctx, meta, []*note{{Title: "a", Score: 1}, {Title: "b", Score: 5}, {Title: "c", Score: 9}})
	require.NoError(t, err)
	require.Len(t, items, 3)

	upd, err := c.UpdateOne(ctx, meta, resource.FilterOne{Query: resource.MergeIdentity(nil, items[0].ID, "")}, resource.Patch{"title": "A"})
	require.NoError(t, err)
	require.Equal(t, "A", upd.Title)
	require.Equal(t, "alice", upd.UpdatedBy)

	n, err := c.UpdateBulk(ctx, meta, resource.QueryFilter{Query: resource.Query{"score": map[string]any{"$gte": 5.0}}}, resource.Patch{"tags": []any{"hot"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	hot, err := c.Find(ctx, meta, resource.Filter{Query: resource.Query{"tags": []any{"hot"}}, Sort: []string{"-score"}})
	require.NoError(t, err)
	require.Len(t, hot, 2)
	require.Equal(t, "c", hot[0].Title)
}

func TestCollection_UpdateRejectsProtectedAndInvalid(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	a, _ := c.Create(ctx, meta, &note{Title: "a"})
	byID := resource.FilterOne{Query: resource.MergeIdentity(nil, a.ID, "")}

	_, err := c.UpdateOne(ctx, meta, byID, resource.Patch{"tenant": "other"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)

	_, err = c.UpdateOne(ctx, meta, byID, resource.Patch{"score": "not-a-number"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)

	_, err = c.UpdateOne(ctx, meta, byID, resource.Patch{})
	require.ErrorIs(t, err, resource.ErrInvalidInput)
}

func TestCollection_FindProjectionAndPagination(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Create(ctx, meta, &note{Title: fmt.Sprintf("t%d", i), Score: float64(i)})
		require.NoError(t, err)
	}
	page, err := c.Find(ctx, meta, resource.Filter{
		Projection: []string{"title"},
		Sort:       []string{"-score"},
		Pagination: resource.Pagination{Skip: 1, Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "t3", page[0].Title)
	require.Zero(t, page[0].Score)
	require.NotEmpty(t, page[0].ID)
}

func TestCollection_Cursor(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	_, err := c.CreateBulk(ctx, meta, []*note{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)

	s, err := c.Cursor(ctx, meta, resource.Filter{})
	require.NoError(t, err)
	got, err := s.Collect()
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Title)
}

func TestCollection_ModifyKeepsIdentity(t *testing.T) {
	c := newNotes(t)
	ctx := context.Background()
	a, _ := c.Create(ctx, meta, &note{Title: "a"})

	got, err := c.Modify(ctx, meta, resource.MergeIdentity(nil, a.ID, ""), func(n *note) error {
		n.Title = "changed"
		n.ID = "hijack"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, "changed", got.Title)
}
