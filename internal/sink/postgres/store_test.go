package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/sink"
)

func TestWriteInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "critic_reviews")
	require.NoError(t, err)

	rec := sink.Record{
		MovieTitle:  "Heat",
		ReleaseYear: 1995,
		Metascore:   "76",
		Publication: "Variety",
		Author:      "A",
		Score:       "90",
	}

	mock.ExpectExec("INSERT INTO critic_reviews").
		WithArgs(rec.Key(), rec.MovieTitle, rec.ReleaseYear, "76", rec.Publication, rec.Author, "90").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Write(context.Background(), []sink.Record{rec}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteSkipsPlaceholders(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "critic_reviews")
	require.NoError(t, err)

	require.NoError(t, store.Write(context.Background(), []sink.Record{
		{MovieTitle: "Obscure", ReleaseYear: 2003},
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteNullsEmptyScores(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "critic_reviews")
	require.NoError(t, err)

	rec := sink.Record{
		MovieTitle:  "Heat",
		ReleaseYear: 1995,
		Publication: "Variety",
		Author:      "A",
	}
	mock.ExpectExec("INSERT INTO critic_reviews").
		WithArgs(rec.Key(), rec.MovieTitle, rec.ReleaseYear, nil, rec.Publication, rec.Author, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Write(context.Background(), []sink.Record{rec}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad;table")
	require.Error(t, err)
}
