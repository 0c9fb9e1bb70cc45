// Package watcher turns filesystem activity under the site's roots into
// coalesced rebuild requests.
//
// A FileWatcher subscribes to the roots with fsnotify and batches events in
// a Debouncer. Batches are handed to a Trigger, and a single Reloader
// goroutine drains the Trigger and runs one rebuild at a time.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/hotserve/internal/errors"
	"github.com/conneroisu/hotserve/internal/logging"
)

// FileWatcher watches the site roots for changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger

	// dirRoots are watched recursively, fileRoots through their parent.
	dirRoots  map[string]bool
	fileRoots map[string]bool
	watched   map[string]bool
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path should produce change events
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events
type ChangeHandler func(events []ChangeEvent) error

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Cause: err}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
		dirRoots:  make(map[string]bool),
		fileRoots: make(map[string]bool),
		watched:   make(map[string]bool),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// SetRoots replaces the watch set. Directories are watched recursively and
// files through their parent directory. Paths that cannot be subscribed are
// returned as WatchErrors; the rest of the set stays active.
func (fw *FileWatcher) SetRoots(roots []string) []error {
	dirRoots := make(map[string]bool)
	fileRoots := make(map[string]bool)
	desired := make(map[string]bool)
	var errs []error

	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Path: root, Cause: err})
			continue
		}

		if !info.IsDir() {
			fileRoots[root] = true
			desired[filepath.Dir(root)] = true
			continue
		}

		dirRoots[root] = true
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Path: path, Cause: err})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && !NoiseFilter(path) {
				return filepath.SkipDir
			}
			desired[path] = true
			return nil
		})
		if walkErr != nil {
			errs = append(errs, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Path: root, Cause: walkErr})
		}
	}

	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	for dir := range fw.watched {
		if !desired[dir] {
			_ = fw.watcher.Remove(dir)
			delete(fw.watched, dir)
		}
	}

	for _, dir := range sortedKeys(desired) {
		if fw.watched[dir] {
			continue
		}
		if err := fw.watcher.Add(dir); err != nil {
			errs = append(errs, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Path: dir, Cause: err})
			continue
		}
		fw.watched[dir] = true
	}

	fw.dirRoots = dirRoots
	fw.fileRoots = fileRoots

	return errs
}

// WatchedPaths returns the directories currently subscribed.
func (fw *FileWatcher) WatchedPaths() []string {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return sortedKeys(fw.watched)
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, &errors.WatchError{Kind: errors.WatchSubscribeFailed, Cause: err}, "File watcher error")
		}
	}
}

// relevant reports whether path lies under a directory root or is a file
// root itself.
func (fw *FileWatcher) relevant(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	if fw.fileRoots[path] {
		return true
	}
	for root := range fw.dirRoots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !fw.relevant(path) {
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return
		}
	}

	info, err := os.Stat(path)
	var modTime time.Time
	var size int64

	if err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	// directories created under a root join the watch set
	if eventType == EventTypeCreated && err == nil && info.IsDir() {
		fw.addCreatedDir(path)
	}

	fw.debouncer.Add(ChangeEvent{
		Type:    eventType,
		Path:    path,
		ModTime: modTime,
		Size:    size,
	})
}

func (fw *FileWatcher) addCreatedDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if !NoiseFilter(path) {
			return filepath.SkipDir
		}

		fw.mutex.Lock()
		defer fw.mutex.Unlock()
		if fw.watched[path] {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn(context.Background(), &errors.WatchError{Kind: errors.WatchSubscribeFailed, Path: path, Cause: err}, "Cannot watch new directory")
			return nil
		}
		fw.watched[path] = true
		return nil
	})
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Warn(ctx, err, "File watcher handler error")
				}
			}
		}
	}
}

// NoiseFilter drops version control internals and editor scratch files.
func NoiseFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == ".git", base == ".hg", base == ".svn":
		return false
	case strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return false
	case strings.HasSuffix(base, "~"), strings.HasPrefix(base, ".#"):
		return false
	case base == "4913", base == ".DS_Store":
		return false
	}
	return NoGitFilter(path)
}

// NoGitFilter drops anything inside a .git directory.
func NoGitFilter(path string) bool {
	slashed := filepath.ToSlash(path)
	return !strings.HasPrefix(slashed, ".git/") && !strings.Contains(slashed, "/.git/")
}

// Paths returns the distinct paths of a batch in sorted order.
func Paths(events []ChangeEvent) []string {
	set := make(map[string]bool, len(events))
	for _, event := range events {
		set[event.Path] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
