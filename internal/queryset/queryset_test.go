package queryset_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/queryset"
)

func TestParse(t *testing.T) {
	t.Parallel()

	in := `movie_title,release_year,status
Heat,1995,done
Amélie,2001,pending
The Great Escape,2020,pending
`
	qs, err := queryset.Parse(strings.NewReader(in), queryset.Options{})
	require.NoError(t, err)
	require.Equal(t, []harvest.Query{
		{Name: "Heat", Year: 1995},
		{Name: "Amélie", Year: 2001},
		{Name: "The Great Escape", Year: 2020},
	}, qs)
}

func TestParseHeaderAliases(t *testing.T) {
	t.Parallel()

	in := "Title,Year\nHeat,1995\n"
	qs, err := queryset.Parse(strings.NewReader(in), queryset.Options{})
	require.NoError(t, err)
	require.Equal(t, []harvest.Query{{Name: "Heat", Year: 1995}}, qs)
}

func TestParseStatusFilter(t *testing.T) {
	t.Parallel()

	in := `movie_title,release_year,status
Heat,1995,done
Amélie,2001,Pending
`
	qs, err := queryset.Parse(strings.NewReader(in), queryset.Options{Statuses: []string{"pending"}})
	require.NoError(t, err)
	require.Equal(t, []harvest.Query{{Name: "Amélie", Year: 2001}}, qs)
}

func TestParseYearBounds(t *testing.T) {
	t.Parallel()

	in := `movie_title,release_year
Old,1950
Mid,2001
New,2024
`
	qs, err := queryset.Parse(strings.NewReader(in), queryset.Options{YearMin: 2000, YearMax: 2020})
	require.NoError(t, err)
	require.Equal(t, []harvest.Query{{Name: "Mid", Year: 2001}}, qs)
}

func TestParseDeduplicates(t *testing.T) {
	t.Parallel()

	in := `movie_title,release_year
Heat,1995
HEAT,1995
Heat,2013
`
	qs, err := queryset.Parse(strings.NewReader(in), queryset.Options{})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	require.Equal(t, "Heat", qs[0].Name)
	require.Equal(t, 1995, qs[0].Year)
	require.Equal(t, 2013, qs[1].Year)
}

func TestParseRejectsMissingColumns(t *testing.T) {
	t.Parallel()

	_, err := queryset.Parse(strings.NewReader("foo,bar\n1,2\n"), queryset.Options{})
	require.Error(t, err)
}

func TestParseRejectsBadYear(t *testing.T) {
	t.Parallel()

	_, err := queryset.Parse(strings.NewReader("movie_title,release_year\nHeat,soon\n"), queryset.Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad year")
}

func TestYears(t *testing.T) {
	t.Parallel()

	qs := []harvest.Query{
		{Name: "A", Year: 2001},
		{Name: "B", Year: 1995},
		{Name: "C", Year: 2001},
	}
	require.Equal(t, []int{2001, 1995}, queryset.Years(qs))
}
