// Package inbox ingests files dropped into a directory: vCard files are
// imported and text files go through shared-text extraction.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/myphonelist/backend/internal/model"
)

const (
	processedDirName = "processed"
	failedDirName    = "failed"

	// maxTextBytes は共有テキストとして読み込む上限
	maxTextBytes = 1 << 20
)

// Ingester is the subset of the contact service the watcher drives.
type Ingester interface {
	ImportVCF(ctx context.Context, r io.Reader) (int, error)
	AddFromSharedText(ctx context.Context, text string) (*model.Contact, bool, error)
}

// Stats counts files handled since the watcher was created.
type Stats struct {
	Processed int
	Failed    int
	Imported  int
}

// Watcher watches one directory and ingests files once they stop changing.
type Watcher struct {
	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	dir         string
	ingester    Ingester
	pending     map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// NewWatcher creates dir and its processed/ and failed/ subdirectories.
func NewWatcher(dir string, ingester Ingester) (*Watcher, error) {
	for _, d := range []string{dir, filepath.Join(dir, processedDirName), filepath.Join(dir, failedDirName)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create %s: %w", d, err)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	return &Watcher{
		fsw:         fsw,
		dir:         dir,
		ingester:    ingester,
		pending:     make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		tick:        100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Files already in the directory are queued once.
// It does not block. A failed Start closes the Watcher.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		// Stop is a no-op when not running, so release the fsnotify watcher here
		if cerr := w.fsw.Close(); cerr != nil {
			slog.Error("inbox: close watcher", "error", cerr)
		}
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Warn("inbox: initial scan failed", "dir", w.dir, "error", err)
	}
	queued := 0
	w.mu.Lock()
	for _, e := range entries {
		if !e.IsDir() && ingestible(e.Name()) {
			// zero time: due on the first tick
			w.pending[filepath.Join(w.dir, e.Name())] = time.Time{}
			queued++
		}
	}
	w.mu.Unlock()

	slog.Info("inbox: watching", "dir", w.dir, "queued", queued)
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and waits for the file in progress.
// A stopped Watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		slog.Error("inbox: close watcher", "error", err)
	}
	slog.Info("inbox: stopped", "dir", w.dir)
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("inbox: watcher error", "error", err)
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !ingestible(event.Name) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled(ctx context.Context) {
	now := time.Now()
	var due []string

	w.mu.Lock()
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounceDur {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

// process ingests one file and moves it to processed/ or failed/.
func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// moved away or deleted before it settled
		return
	}

	n, err := w.ingest(ctx, path)
	target := processedDirName
	if err != nil {
		target = failedDirName
		slog.Warn("inbox: ingest failed", "file", filepath.Base(path), "added", n, "error", err)
	} else {
		slog.Info("inbox: file ingested", "file", filepath.Base(path), "added", n)
	}

	if err := w.move(path, target); err != nil {
		slog.Error("inbox: move failed", "file", path, "target", target, "error", err)
	}

	w.mu.Lock()
	w.stats.Imported += n
	if target == failedDirName {
		w.stats.Failed++
	} else {
		w.stats.Processed++
	}
	w.mu.Unlock()
}

func (w *Watcher) ingest(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".vcf", ".vcard":
		return w.ingester.ImportVCF(ctx, f)
	default:
		data, err := io.ReadAll(io.LimitReader(f, maxTextBytes+1))
		if err != nil {
			return 0, err
		}
		if len(data) > maxTextBytes {
			return 0, errors.New("shared text too large")
		}
		_, added, err := w.ingester.AddFromSharedText(ctx, string(data))
		if err != nil || !added {
			return 0, err
		}
		return 1, nil
	}
}

// move renames path into dir/sub, prefixing a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) error {
	base := filepath.Base(path)
	dst := filepath.Join(w.dir, sub, base)
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(w.dir, sub, time.Now().UTC().Format("20060102T150405.000000000Z")+"-"+base)
	}
	return os.Rename(path, dst)
}

func ingestible(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vcf", ".vcard", ".txt":
		return true
	}
	return false
}
