// Package watch reruns a build whenever its source files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/catobuild/internal/logfields"
)

// DefaultDebounce collapses bursts of editor writes into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// DefaultExtensions are watched next to the named files, so that edits to
// local headers also trigger a rebuild.
var DefaultExtensions = []string{".c", ".h"}

// Options selects what is watched.
type Options struct {
	// Files always trigger a rebuild when they change.
	Files []string
	// Extensions of sibling files in the same directories that also trigger.
	Extensions []string
	Debounce   time.Duration
}

// BuildFunc performs one build. Its error is logged and watching continues.
type BuildFunc func(ctx context.Context) error

// Run builds once, then rebuilds after every relevant change until ctx is
// done. Builds never overlap; changes during a build queue one more build.
func Run(ctx context.Context, opts Options, build BuildFunc) error {
	if len(opts.Files) == 0 {
		return fmt.Errorf("watch: no files to watch")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}

	m, err := newMatcher(opts)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Directories rather than files: editors often save by renaming a new
	// file over the old one, which drops a watch placed on the file itself.
	for _, dir := range m.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	runBuild(ctx, build)

	rebuildReq, trigger, stop := setupRebuildDebouncer(opts.Debounce)
	defer stop()

	workerCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rebuildWorker(workerCtx, rebuildReq, build)
	}()
	defer wg.Wait()
	defer cancel()

	slog.Info("Watching for changes", slog.Any("files", opts.Files))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping watch")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if m.matches(ev.Name) {
				slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

func runBuild(ctx context.Context, build BuildFunc) {
	if err := build(ctx); err != nil {
		slog.Warn("Build failed; waiting for changes", logfields.Error(err))
	}
}

// setupRebuildDebouncer returns the request channel, a trigger that fires
// once the debounce interval passes without another trigger, and a stop
// function for the pending timer.
func setupRebuildDebouncer(interval time.Duration) (<-chan struct{}, func(), func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(interval, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return rebuildReq, trigger, stop
}

// rebuildWorker runs one build per request. The channel holds at most one
// request, so changes made during a build coalesce into a single rebuild.
func rebuildWorker(ctx context.Context, rebuildReq <-chan struct{}, build BuildFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rebuildReq:
			if ctx.Err() != nil {
				return
			}
			slog.Info("Change detected; rebuilding")
			runBuild(ctx, build)
		}
	}
}

type matcher struct {
	files  map[string]bool
	exts   []string
	dirSet map[string]bool
}

func newMatcher(opts Options) (*matcher, error) {
	m := &matcher{files: map[string]bool{}, dirSet: map[string]bool{}}
	for _, f := range opts.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", f, err)
		}
		m.files[abs] = true
		m.dirSet[filepath.Dir(abs)] = true
	}
	for _, e := range opts.Extensions {
		m.exts = append(m.exts, strings.ToLower(e))
	}
	return m, nil
}

func (m *matcher) dirs() []string {
	out := make([]string, 0, len(m.dirSet))
	for d := range m.dirSet {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// matches reports whether a change to path should trigger a rebuild.
// Hidden files and editor leftovers never do.
func (m *matcher) matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if m.files[abs] {
		return true
	}
	if shouldIgnoreEvent(abs) || !m.dirSet[filepath.Dir(abs)] {
		return false
	}
	return slices.Contains(m.exts, strings.ToLower(filepath.Ext(abs)))
}

func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") {
		return true
	}
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx")
}
