package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

func TestRecordsFlattensItems(t *testing.T) {
	t.Parallel()

	res := harvest.Result{
		Entity: harvest.ResolvedEntity{Query: harvest.Query{Name: "Heat", Year: 1995}},
		Items: []harvest.Item{
			{Fields: map[string]string{"publication": "Variety", "author": "A", "score": "90", "metascore": "76"}},
			{Fields: map[string]string{"publication": "Empire", "author": "B", "score": "80", "metascore": "76"}},
		},
	}
	recs := Records(res)
	require.Len(t, recs, 2)
	require.Equal(t, Record{
		MovieTitle: "Heat", ReleaseYear: 1995, Metascore: "76",
		Publication: "Variety", Author: "A", Score: "90",
	}, recs[0])
}

func TestRecordsPlaceholderForEmptyHarvest(t *testing.T) {
	t.Parallel()

	res := harvest.Result{
		Entity: harvest.ResolvedEntity{Query: harvest.Query{Name: "Obscure", Year: 2003}},
	}
	recs := Records(res)
	require.Len(t, recs, 1)
	require.True(t, recs[0].Placeholder())
	require.Equal(t, "Obscure", recs[0].MovieTitle)
	require.Equal(t, 2003, recs[0].ReleaseYear)
}

func TestRecordKeyNormalizes(t *testing.T) {
	t.Parallel()

	a := Record{MovieTitle: "Am&eacute;lie", ReleaseYear: 2001, Publication: "The  Guardian", Author: "Jane Doe", Score: "80"}
	b := Record{MovieTitle: "Amélie", ReleaseYear: 2001, Publication: "the guardian", Author: "JANE DOE", Score: "80"}
	require.Equal(t, a.Key(), b.Key())
}

type stubSink struct {
	writes int
	err    error
}

func (s *stubSink) Write(context.Context, []Record) error { s.writes++; return s.err }
func (s *stubSink) Close(context.Context) error           { return s.err }

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ok, bad := &stubSink{}, &stubSink{err: boom}
	m := Multi{ok, bad}

	err := m.Write(context.Background(), []Record{{MovieTitle: "Heat", ReleaseYear: 1995}})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, ok.writes)
	require.Equal(t, 1, bad.writes)

	require.ErrorIs(t, m.Close(context.Background()), boom)
}
