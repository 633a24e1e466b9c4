// Package repair rewrites the embedded date of every archive whose status
// is not ok.
package repair

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/tankobon/internal/models"
)

// Scanner produces the records a repair run selects from.
type Scanner interface {
	Scan(ctx context.Context, dir string) ([]models.ArchiveRecord, error)
}

// DateWriter persists a date into an archive. path is absolute.
type DateWriter interface {
	WriteDate(ctx context.Context, path string, date models.DateTriple) error
}

// Resolver maps a record path to an absolute filesystem path.
type Resolver interface {
	Resolve(rel string) (string, error)
}

// Observer receives each result as soon as it is produced.
type Observer func(models.RepairResult)

// Engine runs batch repairs.
type Engine struct {
	scanner Scanner
	writer  DateWriter
	paths   Resolver
	logger  *slog.Logger
}

// New creates an Engine.
func New(scanner Scanner, writer DateWriter, paths Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{scanner: scanner, writer: writer, paths: paths, logger: logger}
}

// Repair re-scans dir and writes a replacement date into every archive
// that is not ok. Files are processed one at a time in scan order and a
// failure on one never stops the others. Only a scan failure is returned
// as an error.
func (e *Engine) Repair(ctx context.Context, dir string, observe Observer) ([]models.RepairResult, error) {
	return e.run(ctx, dir, false, observe)
}

// Plan reports what Repair would write without touching any archive.
func (e *Engine) Plan(ctx context.Context, dir string) ([]models.RepairResult, error) {
	return e.run(ctx, dir, true, nil)
}

func (e *Engine) run(ctx context.Context, dir string, dryRun bool, observe Observer) ([]models.RepairResult, error) {
	recs, err := e.scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	results := make([]models.RepairResult, 0, len(recs))
	failed := 0
	for _, rec := range recs {
		if rec.Status == models.StatusOK {
			continue
		}
		var res models.RepairResult
		if dryRun {
			res = planned(rec)
		} else {
			res = e.RepairRecord(ctx, rec)
		}
		if !res.OK {
			failed++
		}
		results = append(results, res)
		if observe != nil {
			observe(res)
		}
	}
	e.logger.Info("repair: run finished",
		slog.String("dir", dir),
		slog.Bool("dry_run", dryRun),
		slog.Int("scanned", len(recs)),
		slog.Int("attempted", len(results)),
		slog.Int("failed", failed))
	return results, nil
}

// RepairRecord writes the replacement date of a single record.
func (e *Engine) RepairRecord(ctx context.Context, rec models.ArchiveRecord) models.RepairResult {
	date := ReplacementDate(rec)
	res := models.RepairResult{
		Filename: rec.Filename,
		Path:     rec.Path,
		Date:     date.String(),
	}
	abs, err := e.paths.Resolve(rec.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := e.writer.WriteDate(ctx, abs, date); err != nil {
		e.logger.Warn("repair: write failed", slog.String("path", rec.Path), slog.String("error", err.Error()))
		res.Error = err.Error()
		return res
	}
	e.logger.Info("repair: date written", slog.String("path", rec.Path), slog.String("date", res.Date))
	res.OK = true
	return res
}

func planned(rec models.ArchiveRecord) models.RepairResult {
	return models.RepairResult{
		Filename: rec.Filename,
		Path:     rec.Path,
		Date:     ReplacementDate(rec).String(),
		OK:       true,
		DryRun:   true,
	}
}

// ReplacementDate picks the date to write for rec: the filename date when
// it forms a valid calendar date, else the file modification date.
func ReplacementDate(rec models.ArchiveRecord) models.DateTriple {
	if rec.ParsedDate != "" {
		d := SplitDate(rec.ParsedDate).Normalize()
		if d.Validate() == nil {
			return d
		}
	}
	return SplitDate(rec.FileModDate).Normalize()
}

// SplitDate splits a YYYY[-MM[-DD]] string. A missing day, or a missing
// month and day, become "01".
func SplitDate(s string) models.DateTriple {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 3)
	switch len(parts) {
	case 3:
		return models.DateTriple{Year: parts[0], Month: parts[1], Day: parts[2]}
	case 2:
		return models.DateTriple{Year: parts[0], Month: parts[1], Day: "01"}
	default:
		return models.DateTriple{Year: parts[0], Month: "01", Day: "01"}
	}
}
