package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/tankobon/internal/comicinfo"
)

// Watcher event kinds.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// DefaultSettle is the quiet period used when Watch is given a zero settle.
const DefaultSettle = 2 * time.Second

// EventCallback is called once an archive change has settled.
// path is relative to the library root.
type EventCallback func(kind string, path string)

type pendingChange struct {
	kind  string
	timer *time.Timer
}

// Watch starts an fsnotify watcher on the library root and reports archive
// changes until ctx is cancelled.
//
// Creates and writes are debounced per path: the callback fires only after
// the archive has been quiet for settle, so half-copied files are never
// reported. Removals and renames away are reported immediately. New
// directories are added to the watch list and their archives reported.
func Watch(ctx context.Context, root string, settle time.Duration, logger *slog.Logger, cb EventCallback) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root), slog.Duration("settle", settle))

	pending := make(map[string]*pendingChange)
	settled := make(chan string)

	schedule := func(rel, kind string) {
		if p, ok := pending[rel]; ok {
			p.timer.Reset(settle)
			return
		}
		pending[rel] = &pendingChange{
			kind: kind,
			timer: time.AfterFunc(settle, func() {
				select {
				case settled <- rel:
				case <-ctx.Done():
				}
			}),
		}
	}

	emit := func(kind, rel string) {
		logger.Debug("watcher: archive changed", slog.String("path", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, p := range pending {
				p.timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case rel := <-settled:
			p, ok := pending[rel]
			if !ok {
				continue
			}
			delete(pending, rel)
			if _, statErr := os.Stat(filepath.Join(root, rel)); statErr != nil {
				continue
			}
			emit(p.kind, rel)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
						continue
					}
					for _, rel := range archivesIn(root, absPath) {
						schedule(rel, EventCreated)
					}
					continue
				}
			}

			name := filepath.Base(absPath)
			if !comicinfo.IsArchive(name) || comicinfo.IsTemp(name) {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(rel, EventCreated)
			case ev.Op&fsnotify.Write != 0:
				schedule(rel, EventUpdated)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if p, ok := pending[rel]; ok {
					p.timer.Stop()
					delete(pending, rel)
				}
				emit(EventDeleted, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// archivesIn lists archives already present in a newly created directory.
func archivesIn(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !comicinfo.IsArchive(d.Name()) || comicinfo.IsTemp(d.Name()) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
