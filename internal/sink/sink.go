// Package sink persists harvested review rows. Every sink consumes the
// same flat record shape so the CSV, database, and notification outputs
// stay interchangeable behind one interface.
package sink

import (
	"context"
	"errors"
	"strconv"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/title"
)

// Record is one output row: a single critic review of a movie, or a
// placeholder marking a movie that yielded no reviews.
type Record struct {
	MovieTitle  string
	ReleaseYear int
	Metascore   string
	Publication string
	Author      string
	Score       string
}

// Placeholder reports whether the record only marks the movie's
// presence, carrying no review.
func (r Record) Placeholder() bool {
	return r.Publication == "" && r.Author == "" && r.Score == ""
}

// Key is the cross-run identity of a review row.
func (r Record) Key() string {
	return title.Normalize(r.MovieTitle) + "|" +
		strconv.Itoa(r.ReleaseYear) + "|" +
		title.Normalize(r.Publication) + "|" +
		title.Normalize(r.Author) + "|" +
		r.Score
}

// Records flattens one harvest result into output rows. The release
// year always comes from the query, not the page. A movie with no
// reviews still produces one placeholder row so the output records that
// it was harvested.
func Records(res harvest.Result) []Record {
	q := res.Entity.Query
	if len(res.Items) == 0 {
		return []Record{{MovieTitle: q.Name, ReleaseYear: q.Year}}
	}
	records := make([]Record, 0, len(res.Items))
	for _, item := range res.Items {
		records = append(records, Record{
			MovieTitle:  q.Name,
			ReleaseYear: q.Year,
			Metascore:   item.Field("metascore"),
			Publication: item.Field("publication"),
			Author:      item.Field("author"),
			Score:       item.Field("score"),
		})
	}
	return records
}

// Sink receives the rows of one resolved movie at a time.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close(ctx context.Context) error
}

// Multi fans writes out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
