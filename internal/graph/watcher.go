package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
)

// FileEventKind classifies a debounced file-system change.
type FileEventKind int

const (
	FileCreated FileEventKind = iota
	FileModified
	FileDeleted
)

// FileEvent is one debounced, filtered file-system change.
type FileEvent struct {
	Kind FileEventKind
	Path string
}

// WatcherConfig configures a FileWatcher.
type WatcherConfig struct {
	DebounceDuration time.Duration
	Extensions       []string
	UseGitignore     bool
	IgnorePatterns   []string
}

// DefaultWatcherConfig mirrors the extension/ignore set a fresh index is
// built with: every language Muninn extracts, plus the common build/VCS
// directories skipped regardless of .gitignore contents.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDuration: 300 * time.Millisecond,
		Extensions:       []string{"rs", "py", "c", "cpp", "h", "hpp", "go"},
		UseGitignore:     true,
		IgnorePatterns:   []string{"target", "node_modules", ".git", "__pycache__", "*.pyc", "vendor"},
	}
}

// FileWatcher watches a directory tree recursively, debouncing bursts of
// events per path and filtering by extension and gitignore-style patterns
// before emitting a FileEvent.
type FileWatcher struct {
	fsw       *fsnotify.Watcher
	config    WatcherConfig
	gitignore *ignore.GitIgnore
	root      string

	events chan FileEvent
	errs   chan error
	done   chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewFileWatcher creates a watcher for root using DefaultWatcherConfig.
func NewFileWatcher(root string) (*FileWatcher, error) {
	return NewFileWatcherWithConfig(root, DefaultWatcherConfig())
}

// NewFileWatcherWithConfig creates a watcher for root with custom config.
func NewFileWatcherWithConfig(root string, config WatcherConfig) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := addRecursiveWatches(fsw, root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	var gi *ignore.GitIgnore
	if config.UseGitignore {
		gi = buildGitignore(root, config.IgnorePatterns)
	}

	w := &FileWatcher{
		fsw:       fsw,
		config:    config,
		gitignore: gi,
		root:      root,
		events:    make(chan FileEvent, 64),
		errs:      make(chan error, 16),
		done:      make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}
	go w.loop()
	return w, nil
}

func addRecursiveWatches(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "." && strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		if skippedBuildDirs[name] {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func buildGitignore(root string, extraPatterns []string) *ignore.GitIgnore {
	var lines []string

	for _, name := range []string{".gitignore", ".muninnignore"} {
		path := filepath.Join(root, name)
		if data, err := os.ReadFile(path); err == nil {
			lines = append(lines, strings.Split(string(data), "\n")...)
		}
	}
	lines = append(lines, extraPatterns...)

	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

// shouldIgnore reports whether path should be filtered out of the event
// stream: gitignore-matched paths, unsupported extensions, and extensionless
// files are all ignored; directories without an extension pass through so
// their creation can trigger a recursive watch addition.
func (w *FileWatcher) shouldIgnore(path string, isDir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err == nil && w.gitignore != nil && w.gitignore.MatchesPath(rel) {
		return true
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return !isDir
	}
	for _, e := range w.config.Extensions {
		if e == ext {
			return false
		}
	}
	return true
}

func (w *FileWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRawEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FileWatcher) handleRawEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if event.Op&fsnotify.Create != 0 && isDir {
		_ = addRecursiveWatches(w.fsw, event.Name)
	}

	if w.shouldIgnore(event.Name, isDir) {
		return
	}
	if isDir {
		return
	}

	w.debounce(event.Name)
}

// debounce resets a per-path timer on every event; when it fires
// undisturbed for DebounceDuration, a single coalesced FileEvent is
// emitted, classified by whether the path currently exists.
func (w *FileWatcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.config.DebounceDuration, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		kind := FileModified
		if _, err := os.Stat(path); err != nil {
			kind = FileDeleted
		}
		select {
		case w.events <- FileEvent{Kind: kind, Path: path}:
		case <-w.done:
		}
	})
}

// Events returns the channel of debounced, filtered file events.
func (w *FileWatcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel of underlying watch errors, which do not stop
// the watcher.
func (w *FileWatcher) Errors() <-chan error {
	return w.errs
}

// Root returns the directory being watched.
func (w *FileWatcher) Root() string {
	return w.root
}

// Close stops the watcher and releases its underlying OS resources.
func (w *FileWatcher) Close() error {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
