package graph

import (
	"log/slog"
	"time"
)

// flushIdleWindow is how long the indexer waits after the last watcher
// event before flushing its accumulated modified/deleted sets.
const flushIdleWindow = 1 * time.Second

// Indexer consumes a FileWatcher's event stream and keeps a Builder's
// Store in sync with the source tree: deletions remove a file's symbols
// and edges, modifications re-parse and re-insert them. Events are
// batched rather than applied one at a time, so a burst of saves (a
// branch checkout, a formatter touching many files) produces one pass
// over the affected files instead of one per event.
type Indexer struct {
	builder *Builder
	watcher *FileWatcher
	logger  *slog.Logger

	modified map[string]struct{}
	deleted  map[string]struct{}
}

// NewIndexer builds an Indexer over builder's store, driven by watcher.
func NewIndexer(builder *Builder, watcher *FileWatcher, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		builder:  builder,
		watcher:  watcher,
		logger:   logger,
		modified: make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
	}
}

// Run drains the watcher's event channel until it is closed, batching
// events into modified/deleted sets with cross-canceling (a later delete
// removes a path from the modified set and vice versa) and flushing the
// batch whenever flushIdleWindow elapses with no new event.
func (ix *Indexer) Run() {
	timer := time.NewTimer(flushIdleWindow)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-ix.watcher.Events():
			if !ok {
				ix.flush()
				return
			}
			ix.accumulate(event)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(flushIdleWindow)

		case <-timer.C:
			ix.flush()
			timer.Reset(flushIdleWindow)
		}
	}
}

func (ix *Indexer) accumulate(event FileEvent) {
	switch event.Kind {
	case FileDeleted:
		delete(ix.modified, event.Path)
		ix.deleted[event.Path] = struct{}{}
	default:
		delete(ix.deleted, event.Path)
		ix.modified[event.Path] = struct{}{}
	}
}

// flush applies the accumulated batch: every deleted path first, then a
// rebuild of every modified path, and clears both sets.
func (ix *Indexer) flush() {
	if len(ix.deleted) == 0 && len(ix.modified) == 0 {
		return
	}

	for path := range ix.deleted {
		if _, err := ix.builder.store.DeleteFile(path); err != nil {
			ix.logger.Warn("indexer: deleting file from graph", "path", path, "error", err)
		}
	}
	for path := range ix.modified {
		if _, err := ix.builder.RebuildFile(path); err != nil {
			ix.logger.Warn("indexer: rebuilding file in graph", "path", path, "error", err)
		}
	}

	ix.logger.Info("indexer: flushed batch", "deleted", len(ix.deleted), "modified", len(ix.modified))
	ix.deleted = make(map[string]struct{})
	ix.modified = make(map[string]struct{})
}
