package infrastructure

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// SubtitleExtractor derives a transcript from a downloaded video. It tries
// the embedded subtitle track first and falls back to speech recognition.
type SubtitleExtractor struct {
	tools   domain.ToolRunner
	speech  domain.SpeechRecognizer
	tempDir string
	logger  *zap.Logger
}

// NewSubtitleExtractor creates a new subtitle extractor. speech may be nil.
func NewSubtitleExtractor(tools domain.ToolRunner, speech domain.SpeechRecognizer, tempDir string, logger *zap.Logger) *SubtitleExtractor {
	return &SubtitleExtractor{
		tools:   tools,
		speech:  speech,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Resolve implements domain.SubtitleResolver. Intermediate files live in a
// private scratch directory that is removed before returning.
func (e *SubtitleExtractor) Resolve(ctx context.Context, videoPath string) domain.SubtitleResult {
	log := e.logger.With(zap.String("video", videoPath))

	if e.tools == nil || !e.tools.Available() {
		log.Warn("Media tool unavailable, transcript skipped")
		return domain.UnavailableSubtitle()
	}

	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		log.Warn("Failed to create temp directory", zap.Error(err))
		return domain.UnavailableSubtitle()
	}
	work, err := os.MkdirTemp(e.tempDir, "subtitle-*")
	if err != nil {
		log.Warn("Failed to create scratch directory", zap.Error(err))
		return domain.UnavailableSubtitle()
	}
	defer os.RemoveAll(work)

	if text, ok := e.embedded(ctx, videoPath, work); ok {
		log.Info("Extracted embedded subtitles", zap.Int("length", len(text)))
		return domain.SubtitleResult{Text: text, Origin: domain.OriginEmbedded}
	}

	if e.speech == nil || !e.speech.Configured() {
		log.Debug("No embedded subtitles and speech recognition not configured")
		return domain.UnavailableSubtitle()
	}

	if text, ok := e.recognize(ctx, videoPath, work, log); ok {
		log.Info("Transcribed speech", zap.Int("length", len(text)))
		return domain.SubtitleResult{Text: text, Origin: domain.OriginSpeech}
	}
	return domain.UnavailableSubtitle()
}

func (e *SubtitleExtractor) embedded(ctx context.Context, videoPath, work string) (string, bool) {
	srtPath := filepath.Join(work, "embedded.srt")
	if _, err := e.tools.Run(ctx, SubtitleArgs(videoPath, srtPath), srtPath); err != nil {
		// most videos simply have no subtitle stream
		return "", false
	}
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return "", false
	}
	text := ParseSRT(string(data))
	return text, text != ""
}

func (e *SubtitleExtractor) recognize(ctx context.Context, videoPath, work string, log *zap.Logger) (string, bool) {
	wavPath := filepath.Join(work, "speech.wav")
	if _, err := e.tools.Run(ctx, SpeechWAVArgs(videoPath, wavPath), wavPath); err != nil {
		log.Warn("Failed to prepare audio for recognition", zap.Error(err))
		return "", false
	}
	text, err := e.speech.Recognize(ctx, wavPath)
	if err != nil {
		log.Warn("Speech recognition failed", zap.Error(err))
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// ParseSRT reduces SRT content to its dialogue lines joined by spaces.
// Cue numbers and timing lines are dropped.
func ParseSRT(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isDigits(line) || strings.Contains(line, "-->") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
