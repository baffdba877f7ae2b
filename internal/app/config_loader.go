package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vidcollect")
		v.AddConfigPath("/etc/vidcollect")
	}

	v.SetEnvPrefix("VIDCOLLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows about; secrets are
	// usually absent from the file.
	for _, key := range []string{"speech.api_key", "speech.secret_key", "speech.enabled"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.TempDir = expandPath(config.Download.TempDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Export.Path = expandPath(config.Export.Path)
	config.Storage.DatabasePath = expandPath(config.Storage.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	if config.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1")
	}

	if config.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch max attempts must be at least 1")
	}

	if config.Fetch.RetryMaxDelay < config.Fetch.RetryMinDelay {
		return fmt.Errorf("fetch retry_max_delay %s is below retry_min_delay %s",
			config.Fetch.RetryMaxDelay, config.Fetch.RetryMinDelay)
	}

	if config.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database path not configured")
	}

	if config.Export.Path == "" {
		return fmt.Errorf("export path not configured")
	}

	for name := range config.Platforms {
		if !domain.ValidatePlatform(domain.Platform(name)) {
			return fmt.Errorf("unknown platform in platforms section: %s", name)
		}
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configMap(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configMap mirrors the mapstructure keys so a saved file loads back
// unchanged. Secrets are left out; they belong in the environment.
func configMap(config *domain.Config) map[string]interface{} {
	platforms := make(map[string]interface{}, len(config.Platforms))
	for name, p := range config.Platforms {
		platforms[name] = map[string]interface{}{
			"requests_per_second": p.RequestsPerSecond,
			"min_delay":           p.MinDelay.String(),
			"max_delay":           p.MaxDelay.String(),
		}
	}

	return map[string]interface{}{
		"server": map[string]interface{}{
			"host": config.Server.Host,
			"port": config.Server.Port,
		},
		"download": map[string]interface{}{
			"base_dir":      config.Download.BaseDir,
			"temp_dir":      config.Download.TempDir,
			"logs_dir":      config.Download.LogsDir,
			"buffer_size":   config.Download.BufferSize,
			"extract_audio": config.Download.ExtractAudio,
			"timeout":       config.Download.Timeout.String(),
		},
		"pipeline": map[string]interface{}{
			"workers": config.Pipeline.Workers,
		},
		"fetch": map[string]interface{}{
			"user_agent":          config.Fetch.UserAgent,
			"max_attempts":        config.Fetch.MaxAttempts,
			"retry_min_delay":     config.Fetch.RetryMinDelay.String(),
			"retry_max_delay":     config.Fetch.RetryMaxDelay.String(),
			"request_timeout":     config.Fetch.RequestTimeout.String(),
			"max_redirects":       config.Fetch.MaxRedirects,
			"requests_per_second": config.Fetch.RequestsPerSecond,
			"burst":               config.Fetch.Burst,
			"min_delay":           config.Fetch.MinDelay.String(),
			"max_delay":           config.Fetch.MaxDelay.String(),
		},
		"platforms": platforms,
		"tools": map[string]interface{}{
			"ffmpeg_binary": config.Tools.FFmpegBinary,
			"timeout":       config.Tools.Timeout.String(),
		},
		"speech": map[string]interface{}{
			"enabled":   config.Speech.Enabled,
			"token_url": config.Speech.TokenURL,
			"endpoint":  config.Speech.Endpoint,
			"cuid":      config.Speech.CUID,
			"dev_pid":   config.Speech.DevPID,
			"timeout":   config.Speech.Timeout.String(),
		},
		"export": map[string]interface{}{
			"path":  config.Export.Path,
			"sheet": config.Export.Sheet,
		},
		"storage": map[string]interface{}{
			"database_path": config.Storage.DatabasePath,
		},
		"notification": map[string]interface{}{
			"enabled": config.Notification.Enabled,
			"sound":   config.Notification.Sound,
			"method":  config.Notification.Method,
		},
		"logging": map[string]interface{}{
			"level":       config.Logging.Level,
			"format":      config.Logging.Format,
			"output_path": config.Logging.OutputPath,
		},
	}
}
