package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

const maxTitleRunes = 50

// HTTPMediaDownloader streams media files through the platform sessions and
// optionally extracts an audio track with the media tool.
type HTTPMediaDownloader struct {
	sessions *SessionManager
	tools    domain.ToolRunner
	config   domain.DownloadConfig
	logger   *zap.Logger
}

// NewHTTPMediaDownloader creates a new media downloader. tools may be nil,
// in which case audio is never extracted.
func NewHTTPMediaDownloader(sessions *SessionManager, tools domain.ToolRunner, config domain.DownloadConfig, logger *zap.Logger) *HTTPMediaDownloader {
	return &HTTPMediaDownloader{
		sessions: sessions,
		tools:    tools,
		config:   config,
		logger:   logger,
	}
}

// Download implements domain.MediaDownloader. The video is written to a
// .part file and renamed into place only when complete; a failed transfer
// leaves nothing behind.
func (d *HTTPMediaDownloader) Download(ctx context.Context, playURL string, naming domain.MediaNaming) (*domain.DownloadResult, error) {
	if playURL == "" {
		return nil, &domain.DownloadError{Kind: domain.DownloadNetwork, Err: errors.New("empty play url")}
	}
	session, err := d.sessions.Session(naming.Platform)
	if err != nil {
		return nil, &domain.DownloadError{Kind: domain.DownloadNetwork, Err: err}
	}

	dir := filepath.Join(d.config.BaseDir, string(naming.Platform))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &domain.DownloadError{Kind: domain.DownloadIO, Err: fmt.Errorf("failed to create media directory: %w", err)}
	}

	base := MediaBaseName(naming)
	videoPath := filepath.Join(dir, base+".mp4")
	partPath := videoPath + ".part"

	err = session.Stream(ctx, playURL, d.config.Timeout, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return &domain.DownloadError{Kind: domain.DownloadNetwork, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		return d.writeBody(resp, partPath)
	})
	if err != nil {
		os.Remove(partPath)
		var downloadErr *domain.DownloadError
		if errors.As(err, &downloadErr) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.DownloadError{Kind: domain.DownloadNetwork, Err: err}
	}

	if err := os.Rename(partPath, videoPath); err != nil {
		os.Remove(partPath)
		return nil, &domain.DownloadError{Kind: domain.DownloadIO, Err: fmt.Errorf("failed to finalize media file: %w", err)}
	}

	d.logger.Info("Downloaded media",
		zap.String("platform", string(naming.Platform)),
		zap.String("content_id", naming.ContentID),
		zap.String("path", videoPath))

	result := &domain.DownloadResult{VideoPath: videoPath}
	if d.config.ExtractAudio {
		result.AudioPath = d.extractAudio(ctx, videoPath, filepath.Join(dir, base+".mp3"))
	}
	return result, nil
}

// readTracker remembers whether a copy failed on the read side
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func (d *HTTPMediaDownloader) writeBody(resp *http.Response, partPath string) error {
	file, err := os.Create(partPath)
	if err != nil {
		return &domain.DownloadError{Kind: domain.DownloadIO, Err: err}
	}

	size := d.config.BufferSize
	if size <= 0 {
		size = 32 * 1024
	}
	src := &readTracker{r: resp.Body}
	written, copyErr := io.CopyBuffer(file, src, make([]byte, size))
	closeErr := file.Close()

	switch {
	case copyErr != nil && src.err != nil:
		return &domain.DownloadError{Kind: domain.DownloadNetwork, Err: copyErr}
	case copyErr != nil:
		return &domain.DownloadError{Kind: domain.DownloadIO, Err: copyErr}
	case closeErr != nil:
		return &domain.DownloadError{Kind: domain.DownloadIO, Err: closeErr}
	case resp.ContentLength > 0 && written != resp.ContentLength:
		return &domain.DownloadError{
			Kind: domain.DownloadNetwork,
			Err:  fmt.Errorf("truncated transfer: got %d of %d bytes", written, resp.ContentLength),
		}
	case written == 0:
		return &domain.DownloadError{Kind: domain.DownloadNetwork, Err: errors.New("empty response body")}
	}
	return nil
}

// extractAudio returns the audio path, or "" when extraction was skipped or failed
func (d *HTTPMediaDownloader) extractAudio(ctx context.Context, videoPath, audioPath string) string {
	if d.tools == nil || !d.tools.Available() {
		d.logger.Warn("Media tool unavailable, skipping audio extraction", zap.String("video", videoPath))
		return ""
	}
	if _, err := d.tools.Run(ctx, AudioArgs(videoPath, audioPath), audioPath); err != nil {
		os.Remove(audioPath)
		d.logger.Warn("Audio extraction failed",
			zap.String("video", videoPath),
			zap.Error(err))
		return ""
	}
	return audioPath
}

// MediaBaseName builds the file name stem for a content item:
// <sanitized title>_<content id>, or just the id when the title is empty.
func MediaBaseName(naming domain.MediaNaming) string {
	id := SanitizeFilename(naming.ContentID)
	title := SanitizeFilename(naming.Title)
	if title == "" {
		return id
	}
	return title + "_" + id
}

// SanitizeFilename strips characters that are invalid in file names and caps
// the result at 50 characters.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r):
			continue
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(cleaned)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return strings.Trim(string(runes), " .")
}
