// Package watcher turns raw filesystem events into qualified change
// notifications: filtered, debounced, and guaranteed not to overlap an
// in-flight healing session.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind is the type of filesystem change behind a qualified change.
type ChangeKind int

const (
	Created ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// QualifiedChange is a filesystem event that passed every filter and is
// eligible for a healing session. Consumed exactly once.
type QualifiedChange struct {
	Path          string
	Kind          ChangeKind
	SourceContent string
}

// Options configures admission filtering and debouncing.
type Options struct {
	// OutputDir is the artifact destination relative to the root; events
	// under it are always excluded.
	OutputDir string

	// IgnoreDirs are directory names never watched (virtualenvs, caches).
	IgnoreDirs []string

	// IgnoreFiles are exact filenames excluded from admission.
	IgnoreFiles []string

	// Debounce is the per-path coalescing window.
	Debounce time.Duration

	// BufferSize is the qualified-change channel capacity.
	BufferSize int
}

// Watcher consumes fsnotify events for one project root and emits at most
// one QualifiedChange per path per debounce window.
type Watcher struct {
	root     string
	opts     Options
	registry *Registry

	fsw      *fsnotify.Watcher
	changes  chan QualifiedChange
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for the given project root. The registry is shared
// with the orchestrator, which releases paths when sessions end.
func New(root string, registry *Registry, opts Options) (*Watcher, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:     root,
		opts:     opts,
		registry: registry,
		fsw:      fsw,
		changes:  make(chan QualifiedChange, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Changes is the stream of qualified changes. Closed when the watcher stops.
func (w *Watcher) Changes() <-chan QualifiedChange { return w.changes }

// Start registers the project tree and begins dispatching events. The
// dispatch goroutine exits when Stop is called or ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}

	w.wg.Add(1)
	go w.dispatch(ctx)

	slog.Info("watching project", "root", w.root, "debounce", w.opts.Debounce)
	return nil
}

// Stop shuts down the change source and joins the dispatch goroutine.
// Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.wg.Wait()
		close(w.changes)
	})
}

// ignoredDir reports whether a directory name is on the configured
// never-watch list.
func (w *Watcher) ignoredDir(name string) bool {
	for _, dir := range w.opts.IgnoreDirs {
		if name == dir {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) dispatch(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Newly created directories join the watch so nested changes surface.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(filepath.Base(event.Name)) {
				if err := w.addRecursive(event.Name); err != nil {
					slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	kind, ok := convertOp(event.Op)
	if !ok {
		return
	}

	change, admitted := w.Admit(event.Name, kind)
	if !admitted {
		return
	}

	select {
	case w.changes <- change:
	case <-ctx.Done():
	case <-w.done:
	}
}

// Admit applies the filter chain to one event and, on success, returns the
// qualified change with the source content already captured. Filter order:
// output dir, backup suffix, ignore rules, in-flight, debounce (deletes
// bypass debounce only). For non-delete admissions the path is marked
// in-flight before returning, so no asynchronous work can race a duplicate.
func (w *Watcher) Admit(path string, kind ChangeKind) (QualifiedChange, bool) {
	none := QualifiedChange{}

	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = filepath.Clean(path)
	}
	name := filepath.Base(canonical)

	if w.underOutputDir(canonical) {
		return none, false
	}
	if strings.HasSuffix(name, "~") {
		return none, false
	}
	if !w.eligibleFile(name, canonical) {
		return none, false
	}

	isDelete := kind == Deleted
	if !w.registry.Admit(canonical, w.opts.Debounce, isDelete) {
		return none, false
	}

	change := QualifiedChange{Path: canonical, Kind: kind}

	if !isDelete {
		content, err := os.ReadFile(canonical)
		if err != nil {
			// Editors often remove-then-recreate; a vanished file is not
			// a session. Release the slot we just took.
			slog.Debug("unreadable source, skipping", "path", canonical, "error", err)
			w.registry.Complete(canonical)
			return none, false
		}
		change.SourceContent = string(content)
	}

	slog.Info("change qualified", "path", canonical, "kind", kind.String())
	return change, true
}

// underOutputDir reports whether the path lies inside the configured
// artifact destination.
func (w *Watcher) underOutputDir(path string) bool {
	outDir := filepath.Join(w.root, w.opts.OutputDir)
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// eligibleFile applies the name-based exclusions: the configured ignore
// list, the source-extension requirement, and the hard rules inherited from
// the scanner (tests, temp files, VCS litter).
func (w *Watcher) eligibleFile(name, path string) bool {
	if !strings.HasSuffix(name, ".py") {
		return false
	}
	for _, ignored := range w.opts.IgnoreFiles {
		if name == ignored {
			return false
		}
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "test") || strings.Contains(lower, "tmp") {
		return false
	}
	if strings.HasPrefix(name, ".git") || strings.HasSuffix(name, ".log") {
		return false
	}

	norm := filepath.ToSlash(path)
	if strings.Contains(norm, "/__pycache__/") {
		return false
	}
	for _, dir := range w.opts.IgnoreDirs {
		if strings.Contains(norm, "/"+dir+"/") {
			return false
		}
	}
	return true
}

func convertOp(op fsnotify.Op) (ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write):
		return Modified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	default:
		// Chmod and friends never qualify.
		return 0, false
	}
}
