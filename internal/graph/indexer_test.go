package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, dir string) (*Indexer, *Store) {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	watcher, err := NewFileWatcherWithConfig(dir, WatcherConfig{
		DebounceDuration: 10 * time.Millisecond,
		Extensions:       []string{"go"},
		UseGitignore:     false,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	builder := NewBuilder(NewParser(), store)
	return NewIndexer(builder, watcher, nil), store
}

func TestIndexer_AccumulateCrossCancels(t *testing.T) {
	dir := t.TempDir()
	ix, _ := newTestIndexer(t, dir)

	ix.accumulate(FileEvent{Kind: FileModified, Path: "a.go"})
	ix.accumulate(FileEvent{Kind: FileDeleted, Path: "a.go"})
	require.Contains(t, ix.deleted, "a.go")
	require.NotContains(t, ix.modified, "a.go")

	ix.accumulate(FileEvent{Kind: FileModified, Path: "a.go"})
	require.Contains(t, ix.modified, "a.go")
	require.NotContains(t, ix.deleted, "a.go")
}

func TestIndexer_RunIndexesNewFileAfterIdleWindow(t *testing.T) {
	dir := t.TempDir()
	ix, store := newTestIndexer(t, dir)

	go ix.Run()

	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc Hello() {}\n"), 0o644))

	require.Eventually(t, func() bool {
		nodes, err := store.FindSymbolsInFile(path)
		return err == nil && len(nodes) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIndexer_FlushNoopOnEmptyBatch(t *testing.T) {
	dir := t.TempDir()
	ix, _ := newTestIndexer(t, dir)
	ix.flush()
}
