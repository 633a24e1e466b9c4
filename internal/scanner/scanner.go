// Package scanner builds and classifies ArchiveRecords for a library tree.
package scanner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/tankobon/internal/catalog"
	"github.com/starford/tankobon/internal/filename"
	"github.com/starford/tankobon/internal/library"
	"github.com/starford/tankobon/internal/models"
)

// DateReader reads the embedded date of an archive. A nil error with a
// zero triple means the archive has no date record.
type DateReader interface {
	Peek(path string) (models.DateTriple, error)
}

// Scanner walks a library and gathers per-archive date evidence.
type Scanner struct {
	lib    *library.FS
	dates  DateReader
	lookup catalog.Lookup
	logger *slog.Logger
}

// New creates a Scanner. A nil lookup disables catalog enrichment.
func New(lib *library.FS, dates DateReader, lookup catalog.Lookup, logger *slog.Logger) *Scanner {
	if lookup == nil {
		lookup = catalog.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{lib: lib, dates: dates, lookup: lookup, logger: logger}
}

// Library returns the tree the scanner walks.
func (s *Scanner) Library() *library.FS {
	return s.lib
}

// Scan walks dir (relative to the library root) and returns one record per
// archive in lexical path order. Only a failure to walk dir is returned;
// problems with individual archives are reported in record.Error.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]models.ArchiveRecord, error) {
	files, err := s.lib.Archives(dir)
	if err != nil {
		return nil, err
	}
	memo := make(map[string]models.CatalogInfo)
	records := make([]models.ArchiveRecord, 0, len(files))
	for _, f := range files {
		records = append(records, s.build(ctx, f, memo))
	}
	s.logger.Debug("scanner: scan done", slog.String("dir", dir), slog.Int("archives", len(records)))
	return records, nil
}

// Inspect builds the record of a single archive.
func (s *Scanner) Inspect(ctx context.Context, path string) (models.ArchiveRecord, error) {
	f, err := s.lib.Stat(path)
	if err != nil {
		return models.ArchiveRecord{}, err
	}
	return s.build(ctx, f, nil), nil
}

// build assembles one record. memo caches catalog lookups by series for
// the duration of a scan; nil disables it.
func (s *Scanner) build(ctx context.Context, f models.ArchiveFile, memo map[string]models.CatalogInfo) models.ArchiveRecord {
	rec := models.ArchiveRecord{
		Path:        f.Path,
		Filename:    f.Name,
		Series:      f.Dir,
		FileModDate: ModDate(f.ModTime),
	}

	date, err := s.dates.Peek(s.lib.Abs(f))
	if err != nil {
		rec.Error = err.Error()
	}
	if !date.IsZero() {
		rec.EmbeddedDate = &date
	}

	parsed := filename.Parse(f.Name)
	rec.ParsedVolume = parsed.Volume
	rec.ParsedChapter = parsed.Chapter
	rec.ParsedDate = parsed.Date
	rec.OfficialDate = parsed.Date

	info, ok := memo[f.Dir]
	if !ok {
		info = s.lookup.Lookup(ctx, f.Dir)
		if memo != nil {
			memo[f.Dir] = info
		}
	}
	rec.CatalogTitle = info.Title
	rec.CatalogAltTitles = info.AltTitles
	if rec.CatalogAltTitles == nil {
		rec.CatalogAltTitles = []string{}
	}
	rec.CatalogCoverURL = info.CoverURL
	rec.CatalogSeriesURL = info.SeriesURL

	rec.Status = Classify(rec.EmbeddedYear(), rec.ParsedDate)
	return rec
}

// Classify derives an archive's status from its embedded year and the
// date parsed from its filename. The comparison is year-level only.
func Classify(embeddedYear, parsedDate string) models.Status {
	switch {
	case embeddedYear != "" && parsedDate != "" && strings.Contains(parsedDate, embeddedYear):
		return models.StatusOK
	case embeddedYear == "":
		return models.StatusMissing
	default:
		return models.StatusWrong
	}
}

// ModDate renders a modification time as a UTC calendar date.
func ModDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
