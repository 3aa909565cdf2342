package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"customizer/core"
	"customizer/stores/sqlite"
	"customizer/stores/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, sqlstore.SQLite.Rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", sqlstore.Postgres.Rebind(q))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	d := &core.Design{ID: "d1", UserID: "github_1", ProductID: "tee", Name: "First", Scene: []byte(`{"version":1}`)}
	require.NoError(t, s.Save(ctx, d))
	require.NoError(t, s.Save(ctx, &core.Design{ID: "d1", UserID: "github_1", ProductID: "tee", Name: "Second"}))

	got, err := s.Get(ctx, "github_1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Name)
	assert.WithinDuration(t, d.CreatedAt, got.CreatedAt, time.Second)

	list, err := s.List(ctx, "github_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Scene)

	_, err = s.Get(ctx, "github_2", "d1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "github_1", "d1"))
	assert.ErrorIs(t, s.Delete(ctx, "github_1", "d1"), core.ErrNotFound)

	views := []core.ProductView{{ID: "front", Name: "Front", Price: 2}}
	require.NoError(t, s.SaveViews(ctx, "tee", views))
	views[0].Price = 9
	require.NoError(t, s.SaveViews(ctx, "tee", views))
	gotViews, err := s.GetViews(ctx, "tee")
	require.NoError(t, err)
	assert.Equal(t, 9.0, gotViews[0].Price)

	id, err := s.PutAsset(ctx, &core.Asset{UserID: "github_1", Name: "front.png", ContentType: "image/png", Data: []byte{0x89, 'P'}})
	require.NoError(t, err)
	a, err := s.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P'}, a.Data)
	assert.Equal(t, "github_1", a.UserID)
}
