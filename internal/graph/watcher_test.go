package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultWatcherConfig(t *testing.T) {
	config := DefaultWatcherConfig()
	require.Equal(t, 300*time.Millisecond, config.DebounceDuration)
	require.Contains(t, config.Extensions, "go")
	require.Contains(t, config.Extensions, "rs")
	require.True(t, config.UseGitignore)
}

func TestFileWatcher_ShouldIgnore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("ignored_dir/\n*.pyc\n"), 0o644))

	w, err := NewFileWatcherWithConfig(dir, WatcherConfig{
		DebounceDuration: 10 * time.Millisecond,
		Extensions:       []string{"go"},
		UseGitignore:     true,
	})
	require.NoError(t, err)
	defer w.Close()

	require.False(t, w.shouldIgnore(filepath.Join(dir, "main.go"), false))
	require.True(t, w.shouldIgnore(filepath.Join(dir, "main.txt"), false))
	require.True(t, w.shouldIgnore(filepath.Join(dir, "cache.pyc"), false))
	require.True(t, w.shouldIgnore(filepath.Join(dir, "ignored_dir", "x.go"), false))
}

func TestFileWatcher_DetectsModification(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWatcherWithConfig(dir, WatcherConfig{
		DebounceDuration: 20 * time.Millisecond,
		Extensions:       []string{"go"},
		UseGitignore:     false,
	})
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	select {
	case ev := <-w.Events():
		require.Equal(t, path, ev.Path)
		require.Equal(t, FileModified, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a debounced event for the new file")
	}
}
