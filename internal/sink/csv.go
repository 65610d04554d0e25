package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// columns is the canonical output header, one critic review per row.
var columns = []string{
	"movie_title", "release_year", "metascore",
	"critic_publication", "critic_author", "critic_score",
}

// SeenStore remembers review keys across runs so reruns append only
// rows that were never written before.
type SeenStore interface {
	MarkIfNew(ctx context.Context, key string) (bool, error)
}

// CSV writes review rows into per-year files under an output directory,
// movies_<year>.csv, holding an advisory lock on the directory for the
// lifetime of the sink.
type CSV struct {
	dir    string
	logger *zap.Logger
	lock   *flock.Flock
	seen   SeenStore

	mu    sync.Mutex
	files map[int]*yearFile
}

type yearFile struct {
	f *os.File
	w *csv.Writer
}

// CSVOption customizes the CSV sink.
type CSVOption func(*CSV)

// WithSeenStore enables cross-run deduplication of review rows.
func WithSeenStore(s SeenStore) CSVOption {
	return func(c *CSV) { c.seen = s }
}

// NewCSV opens the sink. It fails fast when another process already
// holds the directory lock.
func NewCSV(dir string, logger *zap.Logger, opts ...CSVOption) (*CSV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".harvest.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output dir: %w", err)
	}
	if !held {
		return nil, fmt.Errorf("output dir %s is locked by another run", dir)
	}

	c := &CSV{
		dir:    dir,
		logger: logger,
		lock:   lock,
		files:  make(map[int]*yearFile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Write implements Sink.
func (c *CSV) Write(ctx context.Context, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		if c.seen != nil && !rec.Placeholder() {
			fresh, err := c.seen.MarkIfNew(ctx, rec.Key())
			if err != nil {
				return fmt.Errorf("seen store: %w", err)
			}
			if !fresh {
				c.logger.Debug("skipping previously written row",
					zap.String("movie", rec.MovieTitle),
					zap.String("publication", rec.Publication))
				continue
			}
		}
		yf, err := c.file(rec.ReleaseYear)
		if err != nil {
			return err
		}
		if err := yf.w.Write(row(rec)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	for _, yf := range c.files {
		yf.w.Flush()
		if err := yf.w.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
	}
	return nil
}

// Close flushes and closes every year file and releases the lock.
func (c *CSV) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for year, yf := range c.files {
		yf.w.Flush()
		if err := yf.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush year %d: %w", year, err))
		}
		if err := yf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close year %d: %w", year, err))
		}
	}
	c.files = make(map[int]*yearFile)
	if closer, ok := c.seen.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close seen store: %w", err))
		}
	}
	if err := c.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock output dir: %w", err))
	}
	return errors.Join(errs...)
}

func (c *CSV) file(year int) (*yearFile, error) {
	if yf, ok := c.files[year]; ok {
		return yf, nil
	}
	path := filepath.Join(c.dir, FileName(year))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(columns); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	yf := &yearFile{f: f, w: w}
	c.files[year] = yf
	return yf, nil
}

// FileName is the per-year output file name.
func FileName(year int) string {
	return fmt.Sprintf("movies_%d.csv", year)
}

func row(rec Record) []string {
	return []string{
		rec.MovieTitle,
		strconv.Itoa(rec.ReleaseYear),
		rec.Metascore,
		rec.Publication,
		rec.Author,
		rec.Score,
	}
}
