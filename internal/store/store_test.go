package store

import (
	"context"
	"os"
	"testing"

	"tzupdated/internal/boundary"
	"tzupdated/internal/migrate"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

// 需要真实 PostgreSQL：设置 PG_TEST_DSN 后运行
func TestImportAndLoadRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	st, err := Open(dsn)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, migrate.EnsureSchema(st.DB()))

	ctx := context.Background()
	tag := "test-" + t.Name()
	fs := []boundary.Feature{
		{Name: "East", Geometry: orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}},
		{Name: "West", Geometry: orb.MultiPolygon{{{{-1, -1}, {0, -1}, {0, 0}, {-1, 0}, {-1, -1}}}}},
	}
	n, err := st.ImportFeatures(ctx, fs, tag)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	// 重复导入幂等
	_, err = st.ImportFeatures(ctx, fs, tag)
	require.NoError(t, err)

	ix, err := boundary.Load(ctx, st.BoundarySource(tag))
	require.NoError(t, err)
	require.Equal(t, []string{"East", "West"}, ix.Regions())

	_, err = st.DB().ExecContext(ctx, `DELETE FROM _tz_boundaries WHERE source_tag=$1`, tag)
	require.NoError(t, err)
	_, err = boundary.Load(ctx, st.BoundarySource(tag))
	require.ErrorIs(t, err, boundary.ErrEmptyDataset)
}
