package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
	"github.com/yourusername/vidcollect-go/internal/infrastructure"
	"github.com/yourusername/vidcollect-go/pkg/logger"
)

// ErrJobClaimed is returned when another caller is already rerunning a job
var ErrJobClaimed = errors.New("job is already being rerun")

// PipelineDeps wires the collaborators of a Pipeline. Notifier and Events
// may be nil.
type PipelineDeps struct {
	Repo        domain.JobRepository
	Resolver    domain.LinkResolver
	Fetcher     domain.MetadataFetcher
	Downloader  domain.MediaDownloader
	Subtitles   domain.SubtitleResolver
	Exporter    domain.RecordExporter
	Credentials domain.CredentialStore
	Sessions    domain.CredentialApplier
	Notifier    *infrastructure.NotificationService
	Events      *logger.MultiLogger
	Logger      *zap.Logger
}

// Pipeline drives one job through the collection state machine and
// persists every transition.
type Pipeline struct {
	PipelineDeps
}

// Collected is a job after a pipeline run. Record is set when the job
// reached the assembled state during the run.
type Collected struct {
	Job     *domain.Job
	Record  *domain.AggregatedRecord
	Outcome domain.LinkOutcome
}

// NewPipeline creates a new pipeline
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{PipelineDeps: deps}
}

// Process runs a job to completion and exports its row
func (p *Pipeline) Process(ctx context.Context, job *domain.Job) domain.LinkOutcome {
	collected := p.Run(ctx, job)
	p.Export([]*Collected{collected})
	if job.IsTerminal() && !job.Succeeded() {
		p.Notifier.NotifyJobFailed(job)
	}
	return collected.Outcome
}

// Run moves a job as far as it can go without exporting. A received job is
// resolved first; a resumable job restarts at the fetch step.
//
// The context is only consulted before network steps start. Once metadata
// is fetched the remaining steps finish so the job never stalls in a state
// it cannot resume from.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) *Collected {
	if job.State == domain.StateReceived {
		if ctx.Err() != nil {
			return p.cancelled(job, ctx.Err())
		}
		if !p.resolve(ctx, job) {
			if job.State == domain.StateReceived {
				// resolution was interrupted by cancellation
				return p.cancelled(job, context.Canceled)
			}
			return p.collected(job, nil)
		}
	}

	if !job.CanResume() {
		err := fmt.Errorf("job %s cannot run from state %s", job.ID, job.State)
		p.Logger.Warn("Skipping job", zap.String("id", job.ID), zap.Error(err))
		outcome := domain.OutcomeFromJob(job)
		outcome.Error = err.Error()
		return &Collected{Job: job, Outcome: outcome}
	}

	return p.continueFromFetch(ctx, job)
}

func (p *Pipeline) resolve(ctx context.Context, job *domain.Job) bool {
	link, err := p.Resolver.Resolve(ctx, job.ShareText)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.fail(job, job.MarkParseFailed, err)
		return false
	}
	if err := job.MarkResolved(*link); err != nil {
		p.internalError(job, err)
		return false
	}
	p.save(job)
	p.event("job_resolved", job, zap.String("canonical_url", link.CanonicalURL))
	return true
}

func (p *Pipeline) continueFromFetch(ctx context.Context, job *domain.Job) *Collected {
	if ctx.Err() != nil {
		return p.cancelled(job, ctx.Err())
	}
	link := job.Link()
	meta, err := p.Fetcher.Fetch(ctx, link)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return p.cancelled(job, err)
	case errors.Is(err, domain.ErrLoginRequired):
		if terr := job.MarkLoginRequired(); terr != nil {
			p.internalError(job, terr)
			return p.collected(job, nil)
		}
		p.save(job)
		p.event("job_suspended", job)
		p.Logger.Info("Link needs a login, suspended",
			zap.String("id", job.ID),
			zap.String("platform", string(job.Platform)))
		return p.collected(job, nil)
	case err != nil:
		p.fail(job, job.MarkFetchFailed, err)
		return p.collected(job, nil)
	}

	if err := job.MarkMetadataFetched(meta); err != nil {
		p.internalError(job, err)
		return p.collected(job, nil)
	}
	p.save(job)
	p.event("job_metadata_fetched", job, zap.String("title", meta.Title))

	// the rest of the job runs to a resumable or final state
	ctx = context.WithoutCancel(ctx)

	download, err := p.Downloader.Download(ctx, meta.PlayURL, domain.MediaNaming{
		Platform:  link.Platform,
		ContentID: link.ContentID,
		Title:     meta.Title,
	})
	if err != nil {
		p.fail(job, job.MarkDownloadFailed, err)
		return p.collected(job, nil)
	}
	if err := job.MarkDownloaded(download); err != nil {
		p.internalError(job, err)
		return p.collected(job, nil)
	}
	p.save(job)
	p.event("job_downloaded", job, zap.String("video_path", download.VideoPath))

	subtitle := p.Subtitles.Resolve(ctx, download.VideoPath)
	if err := job.MarkSubtitleAttempted(subtitle); err != nil {
		p.internalError(job, err)
		return p.collected(job, nil)
	}
	p.save(job)
	p.event("job_subtitle_attempted", job, zap.String("origin", string(subtitle.Origin)))

	record := domain.Assemble(link, *meta, *download, subtitle)
	if err := job.MarkAssembled(); err != nil {
		p.internalError(job, err)
		return p.collected(job, nil)
	}
	p.save(job)
	p.event("job_assembled", job)

	return p.collected(job, &record)
}

// Export appends the records of assembled jobs in order and marks those
// jobs exported. A failed write leaves them assembled.
func (p *Pipeline) Export(results []*Collected) {
	var records []domain.AggregatedRecord
	var exported []*Collected
	for _, c := range results {
		if c == nil || c.Record == nil || c.Job.State != domain.StateAssembled {
			continue
		}
		records = append(records, *c.Record)
		exported = append(exported, c)
	}
	if len(records) == 0 || p.Exporter == nil {
		return
	}

	if err := p.Exporter.AppendBatch(records); err != nil {
		p.Logger.Error("Failed to export records",
			zap.Int("records", len(records)),
			zap.Error(err))
		if p.Events != nil {
			p.Events.LogAppError("export_failed", zap.Int("records", len(records)), zap.Error(err))
		}
		return
	}

	for _, c := range exported {
		if err := c.Job.MarkExported(); err != nil {
			p.internalError(c.Job, err)
			continue
		}
		p.save(c.Job)
		p.event("job_exported", c.Job)
		c.Outcome.State = c.Job.State
	}
}

// Resume stores credentials, installs them into the platform session and
// reruns every job suspended on that platform from the fetch step.
func (p *Pipeline) Resume(ctx context.Context, creds *domain.Credentials) ([]domain.LinkOutcome, error) {
	if creds == nil {
		return nil, errors.New("credentials are required")
	}
	if p.Credentials != nil {
		if err := p.Credentials.Save(creds); err != nil {
			return nil, fmt.Errorf("failed to store credentials: %w", err)
		}
	}
	if err := p.Sessions.ApplyCredentials(creds); err != nil {
		return nil, fmt.Errorf("failed to apply credentials: %w", err)
	}

	jobs, err := p.Repo.FindSuspended(creds.Platform)
	if err != nil {
		return nil, fmt.Errorf("failed to load suspended jobs: %w", err)
	}

	p.Logger.Info("Resuming suspended jobs",
		zap.String("platform", string(creds.Platform)),
		zap.Int("jobs", len(jobs)))

	results := make([]*Collected, 0, len(jobs))
	for _, job := range jobs {
		// unclaimed jobs stay suspended for the next resume
		if ctx.Err() != nil {
			break
		}
		claimed, err := p.claim(job)
		if err != nil {
			p.Logger.Error("Failed to claim suspended job", zap.String("id", job.ID), zap.Error(err))
			continue
		}
		if !claimed {
			p.Logger.Debug("Suspended job already resumed elsewhere", zap.String("id", job.ID))
			continue
		}
		p.event("job_resumed", job)
		results = append(results, p.continueFromFetch(ctx, job))
	}
	p.Export(results)

	outcomes := make([]domain.LinkOutcome, len(results))
	for i, c := range results {
		outcomes[i] = c.Outcome
	}
	return outcomes, nil
}

// Retry reruns a failed or suspended job from the fetch step
func (p *Pipeline) Retry(ctx context.Context, id string) (domain.LinkOutcome, error) {
	job, err := p.Repo.FindByID(id)
	if err != nil {
		return domain.LinkOutcome{}, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return domain.LinkOutcome{}, fmt.Errorf("job not found: %s", id)
	}
	if !job.CanRerun() {
		return domain.LinkOutcome{}, fmt.Errorf("job %s cannot be retried in state %s", id, job.State)
	}

	from := job.State
	claimed, err := p.claim(job)
	if err != nil {
		return domain.LinkOutcome{}, fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		return domain.LinkOutcome{}, fmt.Errorf("job %s: %w", id, ErrJobClaimed)
	}

	p.Logger.Info("Retrying job", zap.String("id", id), zap.String("state", string(from)))
	return p.Process(ctx, job), nil
}

// claim moves a resumable job back to resolved in storage. Only one of
// several concurrent callers holding the same job gets true.
func (p *Pipeline) claim(job *domain.Job) (bool, error) {
	from := job.State
	if err := job.MarkResuming(); err != nil {
		return false, err
	}
	claimed, err := p.Repo.Claim(job, from)
	if err != nil || !claimed {
		job.State = from
	}
	return claimed, err
}

func (p *Pipeline) collected(job *domain.Job, record *domain.AggregatedRecord) *Collected {
	outcome := domain.OutcomeFromJob(job)
	if record != nil {
		outcome.Record = record.Map()
	}
	return &Collected{Job: job, Record: record, Outcome: outcome}
}

func (p *Pipeline) cancelled(job *domain.Job, err error) *Collected {
	p.event("job_cancelled", job)
	outcome := domain.OutcomeFromJob(job)
	outcome.Category = domain.CategoryOf(context.Canceled)
	outcome.Error = err.Error()
	return &Collected{Job: job, Outcome: outcome}
}

func (p *Pipeline) fail(job *domain.Job, mark func(error) error, err error) {
	if merr := mark(err); merr != nil {
		p.internalError(job, merr)
		return
	}
	p.save(job)
	p.event("job_failed", job,
		zap.String("category", job.FailureCategory),
		zap.Error(err))
	p.Logger.Warn("Link failed",
		zap.String("id", job.ID),
		zap.String("state", string(job.State)),
		zap.String("category", job.FailureCategory),
		zap.Error(err))
}

func (p *Pipeline) internalError(job *domain.Job, err error) {
	p.Logger.Error("Pipeline invariant violated", zap.String("id", job.ID), zap.Error(err))
	if p.Events != nil {
		p.Events.LogAppError("illegal_transition", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *Pipeline) save(job *domain.Job) {
	if err := p.Repo.Update(job); err != nil {
		p.Logger.Error("Failed to persist job",
			zap.String("id", job.ID),
			zap.String("state", string(job.State)),
			zap.Error(err))
	}
}

func (p *Pipeline) event(name string, job *domain.Job, fields ...zap.Field) {
	if p.Events == nil {
		return
	}
	fields = append([]zap.Field{
		zap.String("job_id", job.ID),
		zap.String("batch_id", job.BatchID),
		zap.String("state", string(job.State)),
		zap.String("platform", string(job.Platform)),
		zap.String("content_id", job.ContentID),
	}, fields...)
	p.Events.LogPipelineEvent(name, fields...)
}
