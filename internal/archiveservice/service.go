// Package archiveservice coordinates scanning, date rewrites and repair
// runs over one library, and reports what it does as events.
package archiveservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tankobon/internal/apperr"
	"github.com/starford/tankobon/internal/checksum"
	"github.com/starford/tankobon/internal/comicinfo"
	"github.com/starford/tankobon/internal/filename"
	"github.com/starford/tankobon/internal/library"
	"github.com/starford/tankobon/internal/models"
	"github.com/starford/tankobon/internal/repair"
	"github.com/starford/tankobon/internal/scanner"
	"github.com/starford/tankobon/internal/sse"
)

// ArchiveDetail is one archive record plus the checksum of its file.
type ArchiveDetail struct {
	models.ArchiveRecord
	Checksum string `json:"checksum"`
}

// DateDetail is the embedded date of one archive.
type DateDetail struct {
	Path     string `json:"path"`
	Year     string `json:"year"`
	Month    string `json:"month"`
	Day      string `json:"day"`
	Checksum string `json:"checksum"`
}

// repairFile is the payload of a repair.file event.
type repairFile struct {
	RunID string `json:"run_id,omitempty"`
	models.RepairResult
}

// Publisher receives service events. *sse.Broker implements it.
type Publisher interface {
	Publish(sse.Event)
	PublishArchiveChange(sse.ArchiveChange)
}

type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event)                      {}
func (nopPublisher) PublishArchiveChange(sse.ArchiveChange) {}

// Service is the single entry point the HTTP API, the MCP server, the CLI
// and the watcher use to read and mutate a library.
type Service struct {
	lib        *library.FS
	scanner    *scanner.Scanner
	codec      *comicinfo.Codec
	engine     *repair.Engine
	lock       *writeLock
	events     Publisher
	autoRepair bool
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where events are sent.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLockFile enables cross-process locking through an advisory lock on path.
func WithLockFile(path string) Option {
	return func(s *Service) {
		s.lock = newWriteLock(path)
	}
}

// WithAutoRepair makes HandleChange repair settled archives whose status
// is missing.
func WithAutoRepair(enabled bool) Option {
	return func(s *Service) {
		s.autoRepair = enabled
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over lib.
func New(lib *library.FS, codec *comicinfo.Codec, scan *scanner.Scanner, opts ...Option) *Service {
	s := &Service{
		lib:     lib,
		scanner: scan,
		codec:   codec,
		lock:    newWriteLock(""),
		events:  nopPublisher{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = repair.New(scan, codec, lib, s.logger)
	return s
}

// Library returns the library the service manages.
func (s *Service) Library() *library.FS {
	return s.lib
}

// ListArchives scans dir and returns its records in path order.
func (s *Service) ListArchives(ctx context.Context, dir string) ([]models.ArchiveRecord, error) {
	return s.scanner.Scan(ctx, dir)
}

// GetArchive returns the record of one archive.
func (s *Service) GetArchive(ctx context.Context, path string) (*ArchiveDetail, error) {
	rec, err := s.scanner.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	sum, err := checksum.File(s.lib.Abs(models.ArchiveFile{Path: rec.Path}))
	if err != nil {
		return nil, fmt.Errorf("archiveservice: checksum: %w", err)
	}
	return &ArchiveDetail{ArchiveRecord: rec, Checksum: sum}, nil
}

// GetDate returns the embedded date of one archive.
func (s *Service) GetDate(_ context.Context, path string) (*DateDetail, error) {
	f, err := s.lib.Stat(path)
	if err != nil {
		return nil, err
	}
	return s.dateDetail(f)
}

// SetDate writes date into the archive at path. A non-empty ifMatch must
// equal the current file checksum or ErrConflict is returned.
func (s *Service) SetDate(ctx context.Context, path string, date models.DateTriple, ifMatch string) (*DateDetail, error) {
	release, err := s.lock.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := s.lib.Stat(path)
	if err != nil {
		return nil, err
	}
	abs := s.lib.Abs(f)
	if ifMatch != "" {
		sum, err := checksum.File(abs)
		if err != nil {
			return nil, fmt.Errorf("archiveservice: checksum: %w", err)
		}
		if sum != ifMatch {
			return nil, apperr.ErrConflict
		}
	}
	if err := s.codec.WriteDate(ctx, abs, date); err != nil {
		return nil, err
	}
	s.logger.Info("archiveservice: date set", slog.String("path", f.Path), slog.String("date", date.Normalize().String()))

	detail, err := s.dateDetail(f)
	if err != nil {
		return nil, err
	}
	status := scanner.Classify(detail.Year, filename.Parse(f.Name).Date)
	s.events.PublishArchiveChange(sse.ArchiveChange{Kind: library.EventUpdated, Path: f.Path, Status: string(status)})
	return detail, nil
}

// Repair runs a batch repair over dir, or only plans it when dryRun is set.
// A concurrent repair or date write yields ErrBusy.
func (s *Service) Repair(ctx context.Context, dir string, dryRun bool) ([]models.RepairResult, error) {
	if dryRun {
		return s.engine.Plan(ctx, dir)
	}

	release, err := s.lock.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	runID := uuid.NewString()
	start := time.Now()
	s.logger.Info("archiveservice: repair started", slog.String("run_id", runID), slog.String("dir", dir))
	s.events.Publish(sse.Event{Type: sse.TypeRepairStarted, Data: map[string]any{"run_id": runID, "dir": dir}})
	failed := 0
	results, err := s.engine.Repair(ctx, dir, func(res models.RepairResult) {
		if !res.OK {
			failed++
		}
		s.events.Publish(sse.Event{Type: sse.TypeRepairFile, Data: repairFile{RunID: runID, RepairResult: res}})
	})
	finished := map[string]any{
		"run_id":      runID,
		"dir":         dir,
		"attempted":   len(results),
		"failed":      failed,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		finished["error"] = err.Error()
	}
	s.events.Publish(sse.Event{Type: sse.TypeRepairFinished, Data: finished})
	return results, err
}

// HandleChange is the watcher callback. It publishes the change and, with
// auto-repair enabled, repairs a settled archive whose status is missing.
// Only missing archives are repaired so the rewrite's own filesystem event
// cannot trigger another rewrite.
func (s *Service) HandleChange(ctx context.Context, kind, path string) {
	if kind == library.EventDeleted {
		s.events.PublishArchiveChange(sse.ArchiveChange{Kind: kind, Path: path})
		return
	}
	rec, err := s.scanner.Inspect(ctx, path)
	if err != nil {
		s.logger.Debug("archiveservice: inspect failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	s.events.PublishArchiveChange(sse.ArchiveChange{Kind: kind, Path: path, Status: string(rec.Status)})

	if !s.autoRepair || rec.Status != models.StatusMissing {
		return
	}
	release, err := s.lock.acquire()
	if err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			s.logger.Info("archiveservice: auto-repair skipped, library busy", slog.String("path", path))
		} else {
			s.logger.Warn("archiveservice: auto-repair lock failed", slog.String("error", err.Error()))
		}
		return
	}
	defer release()

	res := s.engine.RepairRecord(ctx, rec)
	s.events.Publish(sse.Event{Type: sse.TypeRepairFile, Data: repairFile{RepairResult: res}})
}

func (s *Service) dateDetail(f models.ArchiveFile) (*DateDetail, error) {
	abs := s.lib.Abs(f)
	d := s.codec.ReadDate(abs)
	sum, err := checksum.File(abs)
	if err != nil {
		return nil, fmt.Errorf("archiveservice: checksum: %w", err)
	}
	return &DateDetail{Path: f.Path, Year: d.Year, Month: d.Month, Day: d.Day, Checksum: sum}, nil
}
