package domain

import "time"

// Stats holds engagement counters. All counters are non-negative.
type Stats struct {
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Favorites int64 `json:"favorites"`
	Shares    int64 `json:"shares"`
}

// Author identifies the publisher of a piece of content
type Author struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ContentMetadata is what a platform reveals about one piece of content.
// Every field is optional; an empty PlayURL means the platform withheld
// the media and a login is required.
type ContentMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Stats       Stats    `json:"stats"`
	Author      Author   `json:"author"`
	PlayURL     string   `json:"play_url,omitempty"`
	SourceURL   string   `json:"source_url"`
}

// HasPlayURL reports whether a playable media URL was found
func (m *ContentMetadata) HasPlayURL() bool {
	return m.PlayURL != ""
}

// MediaNaming carries what the downloader needs to name local files
type MediaNaming struct {
	Platform  Platform
	ContentID string
	Title     string
}

// DownloadResult is only produced after the video file is completely written.
type DownloadResult struct {
	VideoPath string `json:"video_path"`
	AudioPath string `json:"audio_path,omitempty"`
}

// SubtitleOrigin records where a transcript came from
type SubtitleOrigin string

const (
	OriginEmbedded    SubtitleOrigin = "embedded"
	OriginSpeech      SubtitleOrigin = "speech"
	OriginUnavailable SubtitleOrigin = "unavailable"
)

// SubtitleResult is the transcript of a video and its origin
type SubtitleResult struct {
	Text   string         `json:"text"`
	Origin SubtitleOrigin `json:"origin"`
}

// UnavailableSubtitle is the result when neither an embedded track nor
// speech recognition produced text.
func UnavailableSubtitle() SubtitleResult {
	return SubtitleResult{Origin: OriginUnavailable}
}

// ToolResult describes a finished external tool invocation
type ToolResult struct {
	ExitCode   int
	OutputPath string
	Duration   time.Duration
}

// Credentials are the per-platform cookies and headers captured after a
// manual login.
type Credentials struct {
	Platform  Platform          `json:"platform"`
	Cookies   map[string]string `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// Expired reports whether the credentials are past their expiry
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
