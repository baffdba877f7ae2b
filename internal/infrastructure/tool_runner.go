package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// stderrTail bounds how much tool output is kept for error messages
const stderrTail = 2048

// FFmpegRunner runs ffmpeg as a subprocess
type FFmpegRunner struct {
	binary      string
	timeout     time.Duration
	eventLogger *logger.MultiLogger // tool invocation log, may be nil
	logger      *zap.Logger
}

// NewFFmpegRunner creates a new runner for the configured binary
func NewFFmpegRunner(config domain.ToolsConfig, eventLogger *logger.MultiLogger, log *zap.Logger) *FFmpegRunner {
	return &FFmpegRunner{
		binary:      config.FFmpegBinary,
		timeout:     config.Timeout,
		eventLogger: eventLogger,
		logger:      log,
	}
}

// Available reports whether the binary can be found
func (r *FFmpegRunner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Run implements domain.ToolRunner. The process gets its own timeout and is
// not killed when ctx is cancelled, so a started step always completes.
func (r *FFmpegRunner) Run(ctx context.Context, args []string, outputPath string) (*domain.ToolResult, error) {
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolUnavailable, r.binary, err)
	}

	runCtx, cancel := detach(ctx, r.timeout)
	defer cancel()

	cmdLine := shellCommand(r.binary, args...)
	r.logger.Debug("Running media tool", zap.String("command", cmdLine))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := &domain.ToolResult{
		ExitCode:   -1,
		OutputPath: outputPath,
		Duration:   time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	err = r.check(runErr, result, &stderr)
	if r.eventLogger != nil {
		r.eventLogger.LogToolInvocation(cmdLine, err,
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("duration", result.Duration))
	}
	return result, err
}

func (r *FFmpegRunner) check(runErr error, result *domain.ToolResult, stderr *bytes.Buffer) error {
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Errorf("%s exited with status %d: %s", r.binary, result.ExitCode, tail(stderr.String()))
		}
		return fmt.Errorf("%s failed: %w", r.binary, runErr)
	}
	info, err := os.Stat(result.OutputPath)
	if err != nil {
		return fmt.Errorf("%s produced no output: %w", r.binary, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s produced an empty file: %s", r.binary, result.OutputPath)
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}

// AudioArgs extracts the audio stream of a video as mp3
func AudioArgs(videoPath, outputPath string) []string {
	return []string{"-hide_banner", "-loglevel", "error", "-i", videoPath, "-q:a", "0", "-map", "a", "-y", outputPath}
}

// SubtitleArgs extracts the first embedded subtitle track as SRT
func SubtitleArgs(videoPath, outputPath string) []string {
	return []string{"-hide_banner", "-loglevel", "error", "-i", videoPath, "-map", "0:s:0", "-y", outputPath}
}

// SpeechWAVArgs transcodes a video's audio into mono 16 kHz PCM for recognition
func SpeechWAVArgs(videoPath, outputPath string) []string {
	return []string{"-hide_banner", "-loglevel", "error", "-i", videoPath, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", "-y", outputPath}
}

// shellQuote quotes s for display in a logged command line. exec.Command
// itself never goes through a shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"$`\\!*?[](){}|;<>&~#%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func shellCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(binary))
	for _, arg := range args {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}
