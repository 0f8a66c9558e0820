// Package autoindex implements the auto-indexing service: a filesystem
// watcher that debounces source-file changes and triggers an incremental
// re-index of the owning project. A burst of saves collapses into one
// re-index per project, not one per file write.
package autoindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/ctxengine/internal/codeunits"
)

var skipDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, "vendor": true,
	".venv": true, "venv": true, "__pycache__": true,
	".idea": true, ".vscode": true, ".cache": true,
	"dist": true, "build": true, ".next": true, "target": true,
}

// ReindexFunc is invoked at most once per debounce window per project,
// after a burst of source-file writes settles.
type ReindexFunc func(ctx context.Context, projectName, projectPath string)

// Watcher watches one or more project trees for source-file changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange ReindexFunc
	bus      *Publisher // optional; nil means trigger_reindex() stays a direct synchronous call

	mu       sync.Mutex
	projects map[string]string // watched root dir -> project name
	timers   map[string]*time.Timer
	stop     chan struct{}
	stopOnce sync.Once
}

// WithPublisher attaches a Publisher so debounced changes are also
// published to the bus for decoupled subscribers (the indexer's own NATS
// subscription, a future metrics listener), alongside the direct
// synchronous onChange call. See nats.go.
func (w *Watcher) WithPublisher(p *Publisher) *Watcher {
	w.bus = p
	return w
}

// New creates a Watcher with the given debounce window.
func New(debounce time.Duration, onChange ReindexFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initializing filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		onChange: onChange,
		projects: make(map[string]string),
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// WatchProject recursively registers projectPath (and its subdirectories,
// skipping the same directories the indexer skips) with the underlying
// fsnotify watcher under projectName.
func (w *Watcher) WatchProject(projectName, projectPath string) error {
	w.mu.Lock()
	w.projects[projectPath] = projectName
	w.mu.Unlock()

	return filepath.Walk(projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if skipDirs[filepath.Base(path)] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Start processes filesystem events until ctx is canceled or Stop is
// called. Run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; keep watching the rest of the tree.
		}
	}
}

// Stop halts event processing and releases the underlying OS watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.fsw.Close()
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	ext := filepath.Ext(event.Name)
	if codeunits.LanguageForExtension(ext) == "" {
		return
	}

	project, projectPath := w.ownerProject(event.Name)
	if project == "" {
		return
	}
	w.debounceTrigger(ctx, project, projectPath)
}

// ownerProject returns the watched project (name, root) that contains
// path, preferring the most specific (longest) match when projects nest.
func (w *Watcher) ownerProject(path string) (string, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var bestRoot, bestName string
	for root, name := range w.projects {
		if !withinDir(root, path) {
			continue
		}
		if len(root) > len(bestRoot) {
			bestRoot, bestName = root, name
		}
	}
	return bestName, bestRoot
}

func withinDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) debounceTrigger(ctx context.Context, projectName, projectPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[projectName]; ok {
		t.Stop()
	}
	w.timers[projectName] = time.AfterFunc(w.debounce, func() {
		if w.bus != nil {
			w.bus.Publish(ctx, ReindexEvent{Project: projectName, Path: projectPath})
		}
		if w.onChange != nil {
			w.onChange(ctx, projectName, projectPath)
		}
	})
}
