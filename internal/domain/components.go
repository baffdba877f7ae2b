package domain

import "context"

// LinkResolver turns free-form share text into a resolved link
type LinkResolver interface {
	Resolve(ctx context.Context, shareText string) (*ResolvedLink, error)
}

// MetadataFetcher retrieves metadata and the play URL for a resolved link.
// It returns ErrLoginRequired when the platform demands authentication.
type MetadataFetcher interface {
	Fetch(ctx context.Context, link ResolvedLink) (*ContentMetadata, error)
}

// MediaDownloader stores the media behind a play URL on local disk
type MediaDownloader interface {
	Download(ctx context.Context, playURL string, naming MediaNaming) (*DownloadResult, error)
}

// SubtitleResolver derives a transcript from a local video file. It never
// fails; the absence of text is reported through the result's origin.
type SubtitleResolver interface {
	Resolve(ctx context.Context, videoPath string) SubtitleResult
}

// SpeechRecognizer transcribes a mono 16 kHz PCM WAV file
type SpeechRecognizer interface {
	Configured() bool
	Recognize(ctx context.Context, wavPath string) (string, error)
}

// ToolRunner invokes the external media tool. A run succeeds only when the
// tool exits with status zero and outputPath holds a non-empty file.
type ToolRunner interface {
	Available() bool
	Run(ctx context.Context, args []string, outputPath string) (*ToolResult, error)
}

// RecordExporter appends assembled records to the tabular output
type RecordExporter interface {
	AppendRow(record AggregatedRecord) error
	AppendBatch(records []AggregatedRecord) error
}

// CredentialApplier installs credentials into live platform sessions
type CredentialApplier interface {
	ApplyCredentials(creds *Credentials) error
}
