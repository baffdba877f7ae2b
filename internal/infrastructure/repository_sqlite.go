package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// jobFilterColumns are the job columns FindAll accepts as filters
var jobFilterColumns = map[string]bool{
	"batch_id":         true,
	"state":            true,
	"platform":         true,
	"content_id":       true,
	"failure_category": true,
}

// OpenDatabase opens the SQLite database and migrates the job and
// credential tables.
func OpenDatabase(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// pipelines write concurrently; SQLite takes one writer at a time
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Job{}, &credentialRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// CloseDatabase closes the underlying connection pool
func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLiteJobRepository implements domain.JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository
func NewSQLiteJobRepository(db *gorm.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

// Create creates a new job
func (r *SQLiteJobRepository) Create(job *domain.Job) error {
	return r.db.Create(job).Error
}

// CreateBatch creates all jobs of a batch in one transaction
func (r *SQLiteJobRepository) CreateBatch(jobs []*domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&jobs).Error
	})
}

// Update updates an existing job
func (r *SQLiteJobRepository) Update(job *domain.Job) error {
	return r.db.Save(job).Error
}

// Claim moves a job to its in-memory state with a conditional update, so
// that of several callers holding the same stored state only one wins
func (r *SQLiteJobRepository) Claim(job *domain.Job, from domain.JobState) (bool, error) {
	result := r.db.Model(&domain.Job{}).
		Where("id = ? AND state = ?", job.ID, from).
		Updates(map[string]interface{}{
			"state":      job.State,
			"updated_at": job.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByID finds a job by ID. It returns nil when no such job exists.
func (r *SQLiteJobRepository) FindByID(id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// FindByBatch finds the jobs of a batch in input order
func (r *SQLiteJobRepository) FindByBatch(batchID string) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.db.Where("batch_id = ?", batchID).
		Order("position ASC").
		Find(&jobs).Error
	return jobs, err
}

// FindSuspended finds jobs waiting for credentials, oldest first. An empty
// platform matches every platform.
func (r *SQLiteJobRepository) FindSuspended(platform domain.Platform) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := r.db.Where("state = ?", domain.StateLoginRequired)
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	err := query.Order("created_at ASC, position ASC").Find(&jobs).Error
	return jobs, err
}

// FindAll finds all jobs with optional filters, newest first
func (r *SQLiteJobRepository) FindAll(filters map[string]interface{}) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := r.db

	for key, value := range filters {
		if !jobFilterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC, position ASC").Find(&jobs).Error
	return jobs, err
}

// GetStats returns job statistics
func (r *SQLiteJobRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{
		ByState:    make(map[string]int64),
		ByPlatform: make(map[string]int64),
	}

	if err := r.db.Model(&domain.Job{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.JobState
		Count int64
	}{}
	if err := r.db.Model(&domain.Job{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range stateCounts {
		stats.ByState[string(sc.State)] = sc.Count
		switch sc.State {
		case domain.StateExported:
			stats.Exported += sc.Count
		case domain.StateAssembled:
			stats.Assembled += sc.Count
		case domain.StateLoginRequired:
			stats.LoginRequired += sc.Count
		case domain.StateParseFailed, domain.StateFetchFailed, domain.StateDownloadFailed:
			stats.Failed += sc.Count
		default:
			stats.InProgress += sc.Count
		}
	}

	platformCounts := []struct {
		Platform domain.Platform
		Count    int64
	}{}
	if err := r.db.Model(&domain.Job{}).
		Select("platform, count(*) as count").
		Where("platform <> ''").
		Group("platform").
		Scan(&platformCounts).Error; err != nil {
		return nil, err
	}
	for _, pc := range platformCounts {
		stats.ByPlatform[string(pc.Platform)] = pc.Count
	}

	return stats, nil
}
