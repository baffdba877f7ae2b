package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/internal/infrastructure"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// ErrEmptyBatch is returned when the input holds no share text
var ErrEmptyBatch = errors.New("no share text in input")

// BatchRunner runs batches of share links through the pipeline with a
// bounded number of links in flight. A failing link never affects the
// others.
type BatchRunner struct {
	repo        domain.JobRepository
	pipeline    *Pipeline
	notifier    *infrastructure.NotificationService
	multiLogger *logger.MultiLogger
	workers     int
	logger      *zap.Logger
	wg          sync.WaitGroup
	active      atomic.Int32
}

// NewBatchRunner creates a new batch runner
func NewBatchRunner(
	repo domain.JobRepository,
	pipeline *Pipeline,
	config *domain.PipelineConfig,
	notifier *infrastructure.NotificationService,
	multiLogger *logger.MultiLogger,
	logger *zap.Logger,
) *BatchRunner {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		repo:        repo,
		pipeline:    pipeline,
		notifier:    notifier,
		multiLogger: multiLogger,
		workers:     workers,
		logger:      logger,
	}
}

// Submit stores one job per non-blank line under a new batch id
func (r *BatchRunner) Submit(lines []string) (string, []*domain.Job, error) {
	batchID := uuid.New().String()

	var jobs []*domain.Job
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		jobs = append(jobs, domain.NewJob(batchID, len(jobs), line))
	}
	if len(jobs) == 0 {
		return "", nil, ErrEmptyBatch
	}

	if err := r.repo.CreateBatch(jobs); err != nil {
		return "", nil, fmt.Errorf("failed to store batch: %w", err)
	}

	if r.multiLogger != nil {
		r.multiLogger.LogPipelineEvent("batch_submitted",
			zap.String("batch_id", batchID),
			zap.Int("links", len(jobs)))
	}
	r.logger.Info("Batch submitted", zap.String("batch_id", batchID), zap.Int("links", len(jobs)))
	return batchID, jobs, nil
}

// Execute runs the jobs of a batch and exports the assembled records in
// input order once every link is done.
func (r *BatchRunner) Execute(ctx context.Context, batchID string, jobs []*domain.Job) *domain.BatchSummary {
	r.active.Add(1)
	defer r.active.Add(-1)

	results := make([]*Collected, len(jobs))
	p := pool.New().WithMaxGoroutines(r.workers)
	for i, job := range jobs {
		p.Go(func() {
			results[i] = r.runOne(ctx, job)
		})
	}
	p.Wait()

	r.pipeline.Export(results)

	outcomes := make([]domain.LinkOutcome, len(results))
	for i, c := range results {
		outcomes[i] = c.Outcome
	}
	summary := domain.Summarize(batchID, outcomes)

	r.logger.Info("Batch completed",
		zap.String("batch_id", batchID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("suspended", summary.Suspended),
		zap.Int("failed", summary.Failed))
	if r.multiLogger != nil {
		r.multiLogger.LogPipelineEvent("batch_completed",
			zap.String("batch_id", batchID),
			zap.Int("total", summary.Total),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("suspended", summary.Suspended),
			zap.Int("failed", summary.Failed),
			zap.Any("categories", summary.Categories))
	}

	r.notify(summary)
	return summary
}

// runOne isolates a link so a panic in one pipeline cannot take down the batch
func (r *BatchRunner) runOne(ctx context.Context, job *domain.Job) (collected *Collected) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Pipeline panicked",
				zap.String("id", job.ID),
				zap.Any("panic", rec))
			if r.multiLogger != nil {
				r.multiLogger.LogAppError("pipeline_panic",
					zap.String("job_id", job.ID),
					zap.Any("panic", rec))
			}
			outcome := domain.OutcomeFromJob(job)
			outcome.Category = domain.CategoryOf(fmt.Errorf("panic: %v", rec))
			outcome.Error = fmt.Sprint(rec)
			collected = &Collected{Job: job, Outcome: outcome}
		}
	}()
	return r.pipeline.Run(ctx, job)
}

func (r *BatchRunner) notify(summary *domain.BatchSummary) {
	if r.notifier == nil {
		return
	}
	waiting := make(map[domain.Platform]int)
	for _, o := range summary.Outcomes {
		if o.Suspended() {
			waiting[o.Platform]++
		}
	}
	platforms := make([]domain.Platform, 0, len(waiting))
	for platform := range waiting {
		platforms = append(platforms, platform)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	for _, platform := range platforms {
		r.notifier.NotifyLoginRequired(platform, waiting[platform])
	}
	r.notifier.NotifyBatchCompleted(summary)
}

// Collect submits and executes a batch in one call
func (r *BatchRunner) Collect(ctx context.Context, lines []string) (*domain.BatchSummary, error) {
	batchID, jobs, err := r.Submit(lines)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, batchID, jobs), nil
}

// RunAsync submits a batch and executes it in the background. Wait blocks
// until every background batch has finished.
func (r *BatchRunner) RunAsync(ctx context.Context, lines []string) (string, []*domain.Job, error) {
	batchID, jobs, err := r.Submit(lines)
	if err != nil {
		return "", nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Execute(ctx, batchID, jobs)
	}()
	return batchID, jobs, nil
}

// Wait blocks until all background batches are done
func (r *BatchRunner) Wait() {
	r.wg.Wait()
}

// ActiveBatches returns the number of batches currently executing
func (r *BatchRunner) ActiveBatches() int {
	return int(r.active.Load())
}

// Summary rebuilds the summary of a batch from the stored jobs
func (r *BatchRunner) Summary(batchID string) (*domain.BatchSummary, error) {
	jobs, err := r.repo.FindByBatch(batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	outcomes := make([]domain.LinkOutcome, len(jobs))
	for i, job := range jobs {
		outcomes[i] = domain.OutcomeFromJob(job)
	}
	return domain.Summarize(batchID, outcomes), nil
}

// GetJob retrieves a job by ID
func (r *BatchRunner) GetJob(id string) (*domain.Job, error) {
	return r.repo.FindByID(id)
}

// ListJobs lists all jobs with optional filters
func (r *BatchRunner) ListJobs(filters map[string]interface{}) ([]*domain.Job, error) {
	return r.repo.FindAll(filters)
}

// GetStats returns job statistics
func (r *BatchRunner) GetStats() (*domain.JobStats, error) {
	return r.repo.GetStats()
}
