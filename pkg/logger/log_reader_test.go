package logger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogReader_ReadsWhatMultiLoggerWrites(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	ml.LogPipelineEvent("job_resolved", zap.String("content_id", "1"))
	ml.LogPipelineEvent("job_suspended", zap.String("content_id", "2"))
	ml.LogPipelineEvent("job_exported", zap.String("content_id", "3"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	all, err := reader.ReadLogs(CategoryPipeline, time.Now(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "job_resolved", all[0].Message)
	assert.Equal(t, "info", all[0].Level)
	assert.NotEmpty(t, all[0].Timestamp)
	assert.Equal(t, "1", all[0].Fields["content_id"])
	assert.Equal(t, "pipeline", all[0].Category)

	last, err := reader.ReadLogs(CategoryPipeline, time.Now(), "", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "job_suspended", last[0].Message)

	found, err := reader.ReadLogs(CategoryPipeline, time.Now(), "SUSPENDED", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2", found[0].Fields["content_id"])
}

func TestLogReader_MissingFileAndPlainLines(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	day := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	entries, err := reader.ReadLogs(CategoryTool, day, "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, os.WriteFile(reader.LogPath(CategoryTool, day), []byte("not json\n\n"), 0644))
	entries, err = reader.ReadLogs(CategoryTool, day, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "not json", entries[0].Message)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Error")
	require.NoError(t, err)
	assert.Equal(t, CategoryError, c)

	_, err = ParseCategory("access")
	assert.Error(t, err)
}

func TestLogReader_FollowSendsBacklogThenNewEntries(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()
	ml.LogPipelineEvent("old_1")
	ml.LogPipelineEvent("old_2")
	ml.LogPipelineEvent("old_3")

	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan LogEntry, 16)
	done := make(chan error, 1)
	go func() { done <- reader.Follow(ctx, CategoryPipeline, 1, out) }()

	next := func() LogEntry {
		t.Helper()
		select {
		case e := <-out:
			return e
		case <-time.After(3 * time.Second):
			t.Fatal("no entry received")
			return LogEntry{}
		}
	}

	assert.Equal(t, "old_3", next().Message)

	ml.LogPipelineEvent("new_1", zap.String("job_id", "j"))
	entry := next()
	assert.Equal(t, "new_1", entry.Message)
	assert.Equal(t, "j", entry.Fields["job_id"])

	cancel()
	assert.NoError(t, <-done)
}

func TestLogReader_FollowWaitsForFile(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan LogEntry, 4)
	go reader.Follow(ctx, CategoryError, 10, out)

	time.Sleep(30 * time.Millisecond)
	line := `{"level":"error","ts":"2026-01-01T00:00:00.000Z","msg":"export_failed"}` + "\n"
	require.NoError(t, os.WriteFile(reader.LogPath(CategoryError, time.Now()), []byte(line), 0644))

	select {
	case e := <-out:
		assert.Equal(t, "export_failed", e.Message)
		assert.Equal(t, "error", e.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry received")
	}
}
