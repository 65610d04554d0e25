package seendb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/sink/seendb"
)

func TestMarkIfNew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := seendb.Open(ctx, filepath.Join(t.TempDir(), "seen.db"))
	require.NoError(t, err)
	defer db.Close()

	fresh, err := db.MarkIfNew(ctx, "heat|1995|variety|a|90")
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = db.MarkIfNew(ctx, "heat|1995|variety|a|90")
	require.NoError(t, err)
	require.False(t, fresh)

	fresh, err = db.MarkIfNew(ctx, "heat|1995|empire|b|80")
	require.NoError(t, err)
	require.True(t, fresh)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestKeysSurviveReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.db")

	db, err := seendb.Open(ctx, path)
	require.NoError(t, err)
	_, err = db.MarkIfNew(ctx, "heat|1995|variety|a|90")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = seendb.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	fresh, err := db.MarkIfNew(ctx, "heat|1995|variety|a|90")
	require.NoError(t, err)
	require.False(t, fresh)
}
