package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryPipeline LogCategory = "pipeline" // Job lifecycle events (JSON)
	CategoryTool     LogCategory = "tool"     // External tool invocations (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
)

var categories = []LogCategory{CategoryPipeline, CategoryTool, CategoryError}

// MultiLogger writes categorized JSON logs to one file per category and day,
// e.g. pipeline-20260115.log.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	files       []*os.File
	config      MultiLoggerConfig
	level       zapcore.Level
	mu          sync.RWMutex
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		config: config,
		level:  level,
		now:    time.Now,
	}
	if err := ml.open(ml.now().Format("20060102")); err != nil {
		return nil, err
	}
	return ml, nil
}

// open (re)creates the category loggers for a date. Callers hold mu or own ml exclusively.
func (ml *MultiLogger) open(date string) error {
	loggers := make(map[LogCategory]*zap.Logger, len(categories))
	var files []*os.File
	for _, category := range categories {
		level := ml.level
		if category == CategoryError {
			level = zapcore.ErrorLevel
		}
		logger, file, err := ml.createStructuredLogger(category, date, level)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		loggers[category] = logger
		files = append(files, file)
	}

	ml.closeFiles()
	ml.loggers = loggers
	ml.files = files
	ml.currentDate = date
	return nil
}

func (ml *MultiLogger) createStructuredLogger(category LogCategory, date string, level zapcore.Level) (*zap.Logger, *os.File, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.CallerKey = ""

	file, err := os.OpenFile(ml.categoryLogPath(category, date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	return zap.New(core), file, nil
}

func (ml *MultiLogger) categoryLogPath(category LogCategory, date string) string {
	return filepath.Join(ml.config.LogsDir, fmt.Sprintf("%s-%s.log", category, date))
}

// LogPath returns today's file for a category
func (ml *MultiLogger) LogPath(category LogCategory) string {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.categoryLogPath(category, ml.currentDate)
}

// GetLogger returns the structured logger for a category, switching files
// when the day changes.
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	today := ml.now().Format("20060102")

	ml.mu.RLock()
	if today == ml.currentDate {
		logger := ml.loggers[category]
		ml.mu.RUnlock()
		return logger
	}
	ml.mu.RUnlock()

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if today != ml.currentDate {
		if err := ml.open(today); err != nil {
			// keep writing to yesterday's files
			ml.loggers[CategoryError].Error("Log rotation failed", zap.Error(err))
		}
	}
	return ml.loggers[category]
}

// LogPipelineEvent logs a job lifecycle event with structured data
func (ml *MultiLogger) LogPipelineEvent(event string, fields ...zap.Field) {
	ml.GetLogger(CategoryPipeline).Info(event, fields...)
}

// LogToolInvocation records an external tool command line and its outcome
func (ml *MultiLogger) LogToolInvocation(cmdLine string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("command", cmdLine))
	if err != nil {
		ml.GetLogger(CategoryTool).Warn("tool_failed", append(fields, zap.Error(err))...)
		return
	}
	ml.GetLogger(CategoryTool).Info("tool_succeeded", fields...)
}

// LogAppError logs an application-level error
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.GetLogger(CategoryError).Error(msg, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	ml.closeFiles()
	return lastErr
}

func (ml *MultiLogger) closeFiles() {
	for _, f := range ml.files {
		f.Close()
	}
	ml.files = nil
}
