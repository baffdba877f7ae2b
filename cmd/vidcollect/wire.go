package main

import (
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/vidcollect-go/internal/app"
	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/internal/infrastructure"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// application holds every wired component of a vidcollect process
type application struct {
	config   *domain.Config
	log      *zap.Logger
	events   *logger.MultiLogger
	db       *gorm.DB
	sqlDB    *sql.DB
	sessions *infrastructure.SessionManager
	resolver *infrastructure.PlatformResolver
	exporter *infrastructure.XLSXExporter
	pipeline *app.Pipeline
	runner   *app.BatchRunner
}

// newApplication loads the configuration and wires the pipeline
func newApplication(configPath string) (*application, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, dir := range []string{config.Download.BaseDir, config.Download.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	events, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event logs: %w", err)
	}

	db, err := infrastructure.OpenDatabase(config.Storage.DatabasePath)
	if err != nil {
		events.Close()
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		events.Close()
		return nil, err
	}

	repo := infrastructure.NewSQLiteJobRepository(db)
	credentials := infrastructure.NewSQLiteCredentialStore(db)

	sessions := infrastructure.NewSessionManager(config, log)
	if err := sessions.LoadCredentials(credentials); err != nil {
		log.Warn("Failed to load stored credentials", zap.Error(err))
	}

	tools := infrastructure.NewFFmpegRunner(config.Tools, events, log)
	if !tools.Available() {
		log.Warn("Media tool not found; audio and subtitle extraction are disabled",
			zap.String("binary", config.Tools.FFmpegBinary))
	}
	speech := infrastructure.NewBaiduSpeechClient(config.Speech, log)
	resolver := infrastructure.NewPlatformResolver(sessions, log)
	exporter := infrastructure.NewXLSXExporter(config.Export, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	pipeline := app.NewPipeline(app.PipelineDeps{
		Repo:        repo,
		Resolver:    resolver,
		Fetcher:     infrastructure.NewContentFetcher(sessions, config.Fetch, log),
		Downloader:  infrastructure.NewHTTPMediaDownloader(sessions, tools, config.Download, log),
		Subtitles:   infrastructure.NewSubtitleExtractor(tools, speech, config.Download.TempDir, log),
		Exporter:    exporter,
		Credentials: credentials,
		Sessions:    sessions,
		Notifier:    notifier,
		Events:      events,
		Logger:      log,
	})
	runner := app.NewBatchRunner(repo, pipeline, &config.Pipeline, notifier, events, log)

	return &application{
		config:   config,
		log:      log,
		events:   events,
		db:       db,
		sqlDB:    sqlDB,
		sessions: sessions,
		resolver: resolver,
		exporter: exporter,
		pipeline: pipeline,
		runner:   runner,
	}, nil
}

// Close releases the database and flushes the logs
func (a *application) Close() {
	if err := infrastructure.CloseDatabase(a.db); err != nil {
		a.log.Warn("Failed to close database", zap.Error(err))
	}
	a.events.Close()
	_ = a.log.Sync()
}
