package tracing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_SessionMode_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	traceFile := filepath.Join(dir, "traces.jsonl")

	w, err := NewWriter(SessionWriterConfig(traceFile))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	trace := NewTrace("test-trace-session")
	trace.Complete()
	require.NoError(t, w.Write(trace))

	require.Equal(t, traceFile, w.CurrentFilePath())

	files, err := w.ListTraceFiles()
	require.NoError(t, err)
	require.Equal(t, []string{traceFile}, files)

	traces, err := ReadTraces(traceFile)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, "test-trace-session", traces[0].TraceID)
}

func TestWriter_DailyRotation_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	traceDir := filepath.Join(dir, "traces")

	w, err := NewWriter(DailyRotationWriterConfig(traceDir))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	trace := NewTrace("test-trace-1")
	trace.Complete()
	require.NoError(t, w.Write(trace))

	files, err := w.ListTraceFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	traces, err := ReadTraces(files[0])
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, "test-trace-1", traces[0].TraceID)
}

func TestWriter_Disabled_NeverTouchesFilesystem(t *testing.T) {
	w, err := NewWriter(DisabledWriterConfig())
	require.NoError(t, err)

	trace := NewTrace("should-not-write")
	trace.Complete()
	require.NoError(t, w.Write(trace))

	files, err := w.ListTraceFiles()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestWriter_AppendsMultipleTracesAsSeparateLines(t *testing.T) {
	dir := t.TempDir()
	traceFile := filepath.Join(dir, "traces.jsonl")

	w, err := NewWriter(SessionWriterConfig(traceFile))
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	for _, id := range []string{"a", "b", "c"} {
		trace := NewTrace(id)
		trace.Complete()
		require.NoError(t, w.Write(trace))
	}

	traces, err := ReadTraces(traceFile)
	require.NoError(t, err)
	require.Len(t, traces, 3)
	require.Equal(t, "a", traces[0].TraceID)
	require.Equal(t, "c", traces[2].TraceID)
}
