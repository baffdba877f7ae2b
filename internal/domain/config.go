package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig              `mapstructure:"server"`
	Download     DownloadConfig            `mapstructure:"download"`
	Pipeline     PipelineConfig            `mapstructure:"pipeline"`
	Fetch        FetchConfig               `mapstructure:"fetch"`
	Platforms    map[string]PlatformConfig `mapstructure:"platforms"`
	Tools        ToolsConfig               `mapstructure:"tools"`
	Speech       SpeechConfig              `mapstructure:"speech"`
	Export       ExportConfig              `mapstructure:"export"`
	Storage      StorageConfig             `mapstructure:"storage"`
	Notification NotificationConfig        `mapstructure:"notification"`
	Logging      LoggingConfig             `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains media download configuration
type DownloadConfig struct {
	BaseDir      string        `mapstructure:"base_dir"`
	TempDir      string        `mapstructure:"temp_dir"`
	LogsDir      string        `mapstructure:"logs_dir"`
	BufferSize   int           `mapstructure:"buffer_size"`
	ExtractAudio bool          `mapstructure:"extract_audio"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PipelineConfig controls batch execution
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// FetchConfig contains HTTP behaviour shared by every platform session
type FetchConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryMinDelay     time.Duration `mapstructure:"retry_min_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxRedirects      int           `mapstructure:"max_redirects"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables the limiter
	Burst             int           `mapstructure:"burst"`
	MinDelay          time.Duration `mapstructure:"min_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
}

// PlatformConfig overrides pacing for a single platform
type PlatformConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MinDelay          time.Duration `mapstructure:"min_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
}

// ToolsConfig contains external media tool configuration
type ToolsConfig struct {
	FFmpegBinary string        `mapstructure:"ffmpeg_binary"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SpeechConfig configures the remote speech recognition service
type SpeechConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	SecretKey string        `mapstructure:"secret_key"`
	TokenURL  string        `mapstructure:"token_url"`
	Endpoint  string        `mapstructure:"endpoint"`
	CUID      string        `mapstructure:"cuid"`
	DevPID    int           `mapstructure:"dev_pid"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ExportConfig configures the spreadsheet output
type ExportConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// StorageConfig configures the job and credential database
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// PacingFor returns the effective pacing for a platform, applying any
// per-platform override on top of the shared fetch settings.
func (c *Config) PacingFor(platform Platform) PlatformConfig {
	pacing := PlatformConfig{
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		MinDelay:          c.Fetch.MinDelay,
		MaxDelay:          c.Fetch.MaxDelay,
	}
	override, ok := c.Platforms[string(platform)]
	if !ok {
		return pacing
	}
	if override.RequestsPerSecond > 0 {
		pacing.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.MinDelay > 0 {
		pacing.MinDelay = override.MinDelay
	}
	if override.MaxDelay > 0 {
		pacing.MaxDelay = override.MaxDelay
	}
	if pacing.MaxDelay < pacing.MinDelay {
		pacing.MaxDelay = pacing.MinDelay
	}
	return pacing
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			BaseDir:      "$HOME/vidcollect/media",
			TempDir:      "$HOME/vidcollect/tmp",
			LogsDir:      "$HOME/vidcollect/logs",
			BufferSize:   32 * 1024,
			ExtractAudio: true,
			Timeout:      10 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
		Fetch: FetchConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			MaxAttempts:       3,
			RetryMinDelay:     1 * time.Second,
			RetryMaxDelay:     3 * time.Second,
			RequestTimeout:    15 * time.Second,
			MaxRedirects:      5,
			RequestsPerSecond: 1,
			Burst:             1,
			MinDelay:          500 * time.Millisecond,
			MaxDelay:          2 * time.Second,
		},
		Platforms: map[string]PlatformConfig{},
		Tools: ToolsConfig{
			FFmpegBinary: "ffmpeg",
			Timeout:      5 * time.Minute,
		},
		Speech: SpeechConfig{
			Enabled:  false,
			TokenURL: "https://aip.baidubce.com/oauth/2.0/token",
			Endpoint: "https://vop.baidu.com/server_api",
			CUID:     "vidcollect",
			DevPID:   1537,
			Timeout:  60 * time.Second,
		},
		Export: ExportConfig{
			Path:  "$HOME/vidcollect/collected.xlsx",
			Sheet: "Videos",
		},
		Storage: StorageConfig{
			DatabasePath: "$HOME/vidcollect/vidcollect.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
