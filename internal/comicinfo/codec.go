package comicinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tankobon/internal/apperr"
	"github.com/starford/tankobon/internal/models"
)

// Packer builds a new archive at dst from the contents of srcDir.
// dst does not exist when Pack is called.
type Packer interface {
	Pack(ctx context.Context, srcDir, dst string) error
}

// Codec reads and writes the date record of archives on disk.
type Codec struct {
	packers    map[Format]Packer
	scratchDir string
	logger     *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithPacker replaces the packer used for format.
func WithPacker(format Format, p Packer) Option {
	return func(c *Codec) {
		c.packers[format] = p
	}
}

// WithScratchDir sets the parent directory for extraction scratch space.
// Empty means the system temp directory.
func WithScratchDir(dir string) Option {
	return func(c *Codec) {
		c.scratchDir = dir
	}
}

// WithLogger sets the logger used for degraded reads and rewrites.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// New creates a Codec with an in-process ZIP packer and the external rar tool.
func New(opts ...Option) *Codec {
	c := &Codec{
		packers: map[Format]Packer{
			FormatZip: ZipPacker{},
			FormatRar: RarPacker{Binary: "rar", Timeout: 5 * time.Minute},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadDate returns the date stored in the archive's metadata entry. A
// missing entry, unreadable archive or malformed record yields the zero
// triple; reading never fails.
func (c *Codec) ReadDate(path string) models.DateTriple {
	d, err := c.Peek(path)
	if err != nil {
		c.logger.Debug("comicinfo: read skipped", slog.String("path", path), slog.String("error", err.Error()))
	}
	return d
}

// Peek is ReadDate that reports why nothing could be read. An archive
// without a metadata entry is not an error.
func (c *Codec) Peek(path string) (models.DateTriple, error) {
	var (
		data []byte
		err  error
	)
	switch FormatOf(path) {
	case FormatZip:
		data, err = readZipEntry(path)
	case FormatRar:
		data, err = readRarEntry(path)
	default:
		return models.DateTriple{}, fmt.Errorf("comicinfo: %s: %w", filepath.Base(path), apperr.ErrUnsupportedFormat)
	}
	if errors.Is(err, errEntryNotFound) {
		return models.DateTriple{}, nil
	}
	if err != nil {
		return models.DateTriple{}, err
	}
	d, err := decodeRecord(data)
	if err != nil {
		return models.DateTriple{}, fmt.Errorf("comicinfo: malformed record: %w", err)
	}
	return d, nil
}

// WriteDate replaces the archive's metadata entries with a record holding
// date, filling a missing month or day with "01". An archive with several
// metadata entries gets the record in all of them.
//
// The archive is extracted to a scratch directory, the record is written
// there, and the directory is repacked into a temp file next to the
// archive. Only a fully built temp file is renamed over the original, so
// any error leaves the original untouched. The original modification time
// is kept.
func (c *Codec) WriteDate(ctx context.Context, path string, date models.DateTriple) error {
	format := FormatOf(path)
	if format == FormatUnknown {
		return fmt.Errorf("comicinfo: %s: %w", filepath.Base(path), apperr.ErrUnsupportedFormat)
	}
	packer, ok := c.packers[format]
	if !ok {
		return fmt.Errorf("comicinfo: no packer for %s: %w", format, apperr.ErrUnsupportedFormat)
	}

	date = date.Normalize()
	if err := date.Validate(); err != nil {
		return fmt.Errorf("comicinfo: %w: %v", apperr.ErrInvalidDate, err)
	}
	rec, err := encodeRecord(date)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("comicinfo: resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("comicinfo: stat: %w", err)
	}

	scratch, err := os.MkdirTemp(c.scratchDir, "tankobon-scratch-*")
	if err != nil {
		return fmt.Errorf("comicinfo: create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			c.logger.Warn("comicinfo: scratch cleanup failed", slog.String("dir", scratch), slog.String("error", rmErr.Error()))
		}
	}()

	var entries []string
	switch format {
	case FormatZip:
		entries, err = c.extractZip(abs, scratch)
	case FormatRar:
		entries, err = c.extractRar(abs, scratch)
	}
	if err != nil {
		return err
	}
	// Repacking may reorder entries, so every copy gets the record.
	if len(entries) == 0 {
		entries = []string{EntryName}
	}
	for _, entry := range entries {
		if err := os.WriteFile(filepath.Join(scratch, entry), rec, 0o644); err != nil {
			return fmt.Errorf("comicinfo: write record: %w", err)
		}
	}

	if err := c.swap(ctx, packer, format, abs, scratch, info); err != nil {
		return err
	}
	c.logger.Debug("comicinfo: date written", slog.String("path", path), slog.String("date", date.String()))
	return nil
}

// swap packs scratch into a sibling temp file and renames it over dst.
func (c *Codec) swap(ctx context.Context, packer Packer, format Format, dst, scratch string, orig os.FileInfo) error {
	tmp := filepath.Join(filepath.Dir(dst), TempPrefix+uuid.NewString()+"."+format.String())

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp)
		}
	}()

	if err := packer.Pack(ctx, scratch, tmp); err != nil {
		return fmt.Errorf("comicinfo: repack %s: %w", filepath.Base(dst), err)
	}
	if err := syncFile(tmp); err != nil {
		return err
	}
	if err := os.Chmod(tmp, orig.Mode().Perm()); err != nil {
		return fmt.Errorf("comicinfo: chmod: %w", err)
	}
	if err := os.Chtimes(tmp, orig.ModTime(), orig.ModTime()); err != nil {
		return fmt.Errorf("comicinfo: chtimes: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("comicinfo: rename: %w", err)
	}
	success = true
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("comicinfo: open for fsync: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("comicinfo: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("comicinfo: close: %w", err)
	}
	return nil
}

// writeFile copies r into a new file at target, creating parent
// directories and stamping modTime when it is known.
func (c *Codec) writeFile(target string, r io.Reader, modTime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("comicinfo: mkdir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("comicinfo: create %s: %w", filepath.Base(target), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("comicinfo: extract %s: %w", filepath.Base(target), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("comicinfo: close %s: %w", filepath.Base(target), err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(target, modTime, modTime); err != nil {
			c.logger.Debug("comicinfo: entry mtime not kept", slog.String("entry", filepath.Base(target)), slog.String("error", err.Error()))
		}
	}
	return nil
}
