// Package queryset loads the movies to harvest from a CSV file. The
// loader tolerates the header variants that show up in exported sheets
// and collapses duplicate rows so the scheduler sees each movie once.
package queryset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// header aliases accepted for each logical column, lowercased.
var (
	nameHeaders   = []string{"movie_title", "title", "name", "movie"}
	yearHeaders   = []string{"release_year", "year"}
	statusHeaders = []string{"status", "state"}
)

// Options filter the loaded set.
type Options struct {
	// Statuses keeps only rows whose status column matches one of these
	// values, case-insensitively. Empty means keep everything.
	Statuses []string
	// YearMin and YearMax bound the release year when non-zero.
	YearMin int
	YearMax int
}

// Load reads queries from a CSV file at path.
func Load(path string, opts Options) ([]harvest.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query set: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	qs, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse query set %s: %w", path, err)
	}
	return qs, nil
}

// Parse reads queries from CSV data. The first record must be a header
// row naming at least the title and year columns.
func Parse(r io.Reader, opts Options) ([]harvest.Query, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameIdx := columnIndex(header, nameHeaders)
	yearIdx := columnIndex(header, yearHeaders)
	statusIdx := columnIndex(header, statusHeaders)
	if nameIdx < 0 || yearIdx < 0 {
		return nil, fmt.Errorf("header %v lacks title or year column", header)
	}

	wantStatus := make(map[string]struct{}, len(opts.Statuses))
	for _, s := range opts.Statuses {
		wantStatus[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	var (
		queries []harvest.Query
		seen    = make(map[string]struct{})
		line    = 1
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line++

		name := strings.TrimSpace(record[nameIdx])
		if name == "" {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(record[yearIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad year %q: %w", line, record[yearIdx], err)
		}
		if opts.YearMin != 0 && year < opts.YearMin {
			continue
		}
		if opts.YearMax != 0 && year > opts.YearMax {
			continue
		}
		if len(wantStatus) > 0 && statusIdx >= 0 {
			status := strings.ToLower(strings.TrimSpace(record[statusIdx]))
			if _, ok := wantStatus[status]; !ok {
				continue
			}
		}

		q := harvest.Query{Name: name, Year: year}
		if _, dup := seen[q.Key()]; dup {
			continue
		}
		seen[q.Key()] = struct{}{}
		queries = append(queries, q)
	}
	return queries, nil
}

// Years returns the distinct release years present in the set, in first
// appearance order. The CSV sink opens one output file per year.
func Years(queries []harvest.Query) []int {
	var (
		years []int
		seen  = make(map[int]struct{})
	)
	for _, q := range queries {
		if _, ok := seen[q.Year]; ok {
			continue
		}
		seen[q.Year] = struct{}{}
		years = append(years, q.Year)
	}
	return years
}

func columnIndex(header, aliases []string) int {
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		for _, alias := range aliases {
			if col == alias {
				return i
			}
		}
	}
	return -1
}
