package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driving"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ReportFunc receives the report of every re-ingestion.
type ReportFunc func(report *domain.BatchReport)

// Watcher re-ingests files created or modified under a folder.
// Removals are ignored; the store is append-only.
type Watcher struct {
	ingest   driving.IngestService
	root     string
	debounce time.Duration
	onReport ReportFunc
}

// NewWatcher creates a watcher for root.
func NewWatcher(ingest driving.IngestService, root string, debounce time.Duration, onReport ReportFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		ingest:   ingest,
		root:     root,
		debounce: debounce,
		onReport: onReport,
	}
}

// Run watches until ctx is cancelled, which returns nil.
// A fatal ingestion error stops the watcher and is returned.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, w.root)
		}
		return fmt.Errorf("stat %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := addTree(fsw, w.root); err != nil {
		// Unwatchable subdirectories are reported; the rest is still watched.
		logger.Warn("watch: %v", err)
	}
	logger.Info("Watching %s", w.root)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path, ok := w.handleEvent(fsw, event)
			if !ok {
				continue
			}
			pending[path] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)

		case <-timer.C:
			paths := drain(pending)
			if err := w.flush(ctx, paths); err != nil {
				return err
			}
		}
	}
}

// handleEvent returns the file to re-ingest for an event, if any.
// New directories are added to the watch.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone before we looked; editors do this with temp files.
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := addTree(fsw, event.Name); err != nil {
				logger.Warn("watch: %v", err)
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	logger.Debug("watch: %s %s", event.Op, event.Name)
	return event.Name, true
}

func (w *Watcher) flush(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	logger.Info("Re-ingesting %d changed file(s)", len(paths))

	report, err := w.ingest.IngestFiles(ctx, paths)
	if report != nil && w.onReport != nil {
		w.onReport(report)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	if domain.IsFatal(err) {
		return err
	}
	logger.Warn("watch: re-ingestion failed: %v", err)
	return nil
}

// drain empties pending and returns its paths sorted.
func drain(pending map[string]struct{}) []string {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
		delete(pending, p)
	}
	sort.Strings(paths)
	return paths
}

// addTree watches root and every directory below it, matching the files
// ExtractFolder discovers.
func addTree(fsw *fsnotify.Watcher, root string) error {
	var errs []error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", path, err))
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}
