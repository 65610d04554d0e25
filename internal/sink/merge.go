package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/title"
)

var yearFileRx = regexp.MustCompile(`^movies_(\d{4})\.csv$`)

// MergeFixes folds a hand-corrected review file into the per-year raw
// output files and writes the merged result under procDir. For each
// year touched by the fixes it backfills missing metascores, drops
// placeholder rows, and appends review rows not already present. Years
// without fixes are copied through unchanged.
func MergeFixes(rawDir, procDir, fixesPath string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		return fmt.Errorf("create processed dir: %w", err)
	}

	years, err := yearFiles(rawDir)
	if err != nil {
		return err
	}

	fixes, err := readRecords(fixesPath)
	if os.IsNotExist(err) {
		logger.Info("no fixes file, copying raw files through", zap.String("path", fixesPath))
		for _, year := range years {
			if err := copyFile(filepath.Join(rawDir, FileName(year)), filepath.Join(procDir, FileName(year))); err != nil {
				return err
			}
		}
		return nil
	}
	if err != nil {
		return err
	}

	fixesByYear := make(map[int][]Record)
	for _, rec := range fixes {
		fixesByYear[rec.ReleaseYear] = append(fixesByYear[rec.ReleaseYear], rec)
	}

	for _, year := range years {
		rawPath := filepath.Join(rawDir, FileName(year))
		outPath := filepath.Join(procDir, FileName(year))

		yearFixes, ok := fixesByYear[year]
		if !ok {
			if err := copyFile(rawPath, outPath); err != nil {
				return err
			}
			logger.Info("no fixes for year, copied through", zap.Int("year", year))
			continue
		}

		base, err := readRecords(rawPath)
		if err != nil {
			return err
		}
		merged, added := mergeYear(base, yearFixes, year)
		if err := writeRecords(outPath, merged); err != nil {
			return err
		}
		logger.Info("merged fixes",
			zap.Int("year", year),
			zap.Int("added", added),
			zap.Int("rows", len(merged)))
	}
	return nil
}

// mergeYear applies one year's fixes to its base rows. Returns the
// merged rows and the count of appended fix rows.
func mergeYear(base, fixes []Record, year int) ([]Record, int) {
	// Best known metascore per movie, from the fixes.
	fixMeta := make(map[string]string)
	for _, fix := range fixes {
		key := movieKey(fix)
		if betterMetascore(fix.Metascore, fixMeta[key]) {
			fixMeta[key] = fix.Metascore
		}
	}

	var merged []Record
	existing := make(map[string]struct{})
	for _, rec := range base {
		if rec.Placeholder() {
			continue
		}
		if !validMetascore(rec.Metascore) {
			if m, ok := fixMeta[movieKey(rec)]; ok {
				rec.Metascore = m
			}
		}
		merged = append(merged, rec)
		existing[rec.Key()] = struct{}{}
	}

	added := 0
	for _, fix := range fixes {
		if _, dup := existing[fix.Key()]; dup {
			continue
		}
		existing[fix.Key()] = struct{}{}
		merged = append(merged, fix)
		added++
	}

	for i := range merged {
		merged[i].ReleaseYear = year
	}
	return merged, added
}

func movieKey(rec Record) string {
	return title.Normalize(rec.MovieTitle) + "|" + strconv.Itoa(rec.ReleaseYear)
}

func validMetascore(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 100
}

func betterMetascore(candidate, current string) bool {
	if !validMetascore(candidate) {
		return false
	}
	if !validMetascore(current) {
		return true
	}
	c, _ := strconv.Atoi(candidate)
	b, _ := strconv.Atoi(current)
	return c > b
}

// yearFiles lists the years that have a movies_<year>.csv under dir,
// ascending.
func yearFiles(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw dir: %w", err)
	}
	var years []int
	for _, e := range entries {
		m := yearFileRx.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		years = append(years, year)
	}
	return years, nil
}

func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only file

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	for _, col := range columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s lacks column %q", path, col)
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		year, err := strconv.Atoi(row[idx["release_year"]])
		if err != nil {
			return nil, fmt.Errorf("%s: bad release_year %q: %w", path, row[idx["release_year"]], err)
		}
		records = append(records, Record{
			MovieTitle:  row[idx["movie_title"]],
			ReleaseYear: year,
			Metascore:   row[idx["metascore"]],
			Publication: row[idx["critic_publication"]],
			Author:      row[idx["critic_author"]],
			Score:       row[idx["critic_score"]],
		})
	}
	return records, nil
}

func writeRecords(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			f.Close() //nolint:errcheck // already failing
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only file
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}
