package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// writeScript installs an executable shell script standing in for ffmpeg.
// The script sees the output path as its last argument.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func newScriptRunner(t *testing.T, body string) (*FFmpegRunner, string) {
	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	runner := NewFFmpegRunner(domain.ToolsConfig{
		FFmpegBinary: writeScript(t, body),
		Timeout:      10 * time.Second,
	}, events, zap.NewNop())
	return runner, events.LogPath(logger.CategoryTool)
}

func lastArg() string {
	return `for last in "$@"; do :; done`
}

func TestFFmpegRunner_Success(t *testing.T) {
	runner, toolLog := newScriptRunner(t, lastArg()+"\necho data > \"$last\"")
	out := filepath.Join(t.TempDir(), "out.mp3")

	require.True(t, runner.Available())
	result, err := runner.Run(context.Background(), AudioArgs("/videos/in put.mp4", out), out)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, out, result.OutputPath)
	assert.FileExists(t, out)

	logged, err := os.ReadFile(toolLog)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "tool_succeeded")
	assert.Contains(t, string(logged), `'/videos/in put.mp4'`)
}

func TestFFmpegRunner_NonZeroExit(t *testing.T) {
	runner, _ := newScriptRunner(t, "echo 'no subtitle stream' >&2\nexit 3")
	out := filepath.Join(t.TempDir(), "out.srt")

	result, err := runner.Run(context.Background(), SubtitleArgs("in.mp4", out), out)

	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, err.Error(), "no subtitle stream")
}

func TestFFmpegRunner_ZeroExitWithoutOutputFails(t *testing.T) {
	runner, _ := newScriptRunner(t, "exit 0")
	out := filepath.Join(t.TempDir(), "out.wav")

	_, err := runner.Run(context.Background(), SpeechWAVArgs("in.mp4", out), out)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrToolUnavailable)
}

func TestFFmpegRunner_EmptyOutputFails(t *testing.T) {
	runner, _ := newScriptRunner(t, lastArg()+"\n: > \"$last\"")
	out := filepath.Join(t.TempDir(), "out.srt")

	_, err := runner.Run(context.Background(), SubtitleArgs("in.mp4", out), out)

	assert.ErrorContains(t, err, "empty file")
}

func TestFFmpegRunner_MissingBinary(t *testing.T) {
	runner := NewFFmpegRunner(domain.ToolsConfig{FFmpegBinary: "/nonexistent/ffmpeg-binary"}, nil, zap.NewNop())

	assert.False(t, runner.Available())
	_, err := runner.Run(context.Background(), []string{"-version"}, "out")
	assert.ErrorIs(t, err, domain.ErrToolUnavailable)
	assert.Equal(t, "tool_unavailable", domain.CategoryOf(err))
}

func TestFFmpegRunner_SurvivesCallerCancellation(t *testing.T) {
	runner, _ := newScriptRunner(t, lastArg()+"\nsleep 0.2\necho data > \"$last\"")
	out := filepath.Join(t.TempDir(), "out.mp3")
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := runner.Run(ctx, AudioArgs("in.mp4", out), out)

	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestShellCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"-i", "/tmp/a.mp4"}, "ffmpeg -i /tmp/a.mp4"},
		{"spaces", []string{"-i", "/tmp/my video.mp4"}, "ffmpeg -i '/tmp/my video.mp4'"},
		{"single quote", []string{"it's.mp4"}, `ffmpeg 'it'"'"'s.mp4'`},
		{"empty", []string{""}, "ffmpeg ''"},
		{"glob chars", []string{"a*b?.mp4"}, "ffmpeg 'a*b?.mp4'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shellCommand("ffmpeg", tt.args...))
		})
	}
}
