// Package library walks and watches a root-confined tree of manga archives.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/tankobon/internal/apperr"
	"github.com/starford/tankobon/internal/comicinfo"
	"github.com/starford/tankobon/internal/models"
)

// FS gives access to the archives under a library root.
type FS struct {
	root string // absolute path to the library directory
}

// NewFS creates a new FS rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("library: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute library root.
func (f *FS) Root() string {
	return f.root
}

// Resolve maps a path relative to the root to an absolute path and rejects
// any result that escapes the root (directory traversal).
func (f *FS) Resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("library: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalidInput)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("library: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("library: path escapes library root: %s: %w", rel, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// Archives walks dir (relative to root) in lexical order and returns every
// recognized archive. Rewrite temp files are skipped.
func (f *FS) Archives(dir string) ([]models.ArchiveFile, error) {
	base, err := f.Resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []models.ArchiveFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !comicinfo.IsArchive(d.Name()) || comicinfo.IsTemp(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, f.archiveFile(p, info))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("library: %s: %w", dir, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("library: walk: %w", err)
	}
	return out, nil
}

// Stat returns the archive at path (relative to root).
func (f *FS) Stat(path string) (models.ArchiveFile, error) {
	abs, err := f.Resolve(path)
	if err != nil {
		return models.ArchiveFile{}, err
	}
	if !comicinfo.IsArchive(abs) {
		return models.ArchiveFile{}, fmt.Errorf("library: %s: %w", path, apperr.ErrUnsupportedFormat)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.ArchiveFile{}, fmt.Errorf("library: %s: %w", path, apperr.ErrNotFound)
		}
		return models.ArchiveFile{}, fmt.Errorf("library: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.ArchiveFile{}, fmt.Errorf("library: %s is a directory: %w", path, apperr.ErrNotFound)
	}
	return f.archiveFile(abs, info), nil
}

// Abs returns the absolute path of an archive returned by Archives or Stat.
func (f *FS) Abs(a models.ArchiveFile) string {
	return filepath.Join(f.root, a.Path)
}

func (f *FS) archiveFile(abs string, info fs.FileInfo) models.ArchiveFile {
	rel, _ := filepath.Rel(f.root, abs)
	return models.ArchiveFile{
		Path:    rel,
		Name:    info.Name(),
		Dir:     filepath.Base(filepath.Dir(abs)),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
}
