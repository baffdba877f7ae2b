package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState is a link's position in the collection pipeline
type JobState string

const (
	StateReceived          JobState = "received"
	StateResolved          JobState = "resolved"
	StateParseFailed       JobState = "parse_failed"
	StateMetadataFetched   JobState = "metadata_fetched"
	StateLoginRequired     JobState = "login_required"
	StateFetchFailed       JobState = "fetch_failed"
	StateDownloaded        JobState = "downloaded"
	StateDownloadFailed    JobState = "download_failed"
	StateSubtitleAttempted JobState = "subtitle_attempted"
	StateAssembled         JobState = "assembled"
	StateExported          JobState = "exported"
)

// fetchTargets are the states a fetch attempt can lead to.
var fetchTargets = []JobState{StateMetadataFetched, StateLoginRequired, StateFetchFailed}

var transitions = map[JobState][]JobState{
	StateReceived:          {StateResolved, StateParseFailed},
	StateResolved:          fetchTargets,
	StateLoginRequired:     fetchTargets,
	StateFetchFailed:       fetchTargets,
	StateDownloadFailed:    fetchTargets,
	StateMetadataFetched:   {StateDownloaded, StateDownloadFailed},
	StateDownloaded:        {StateSubtitleAttempted},
	StateSubtitleAttempted: {StateAssembled},
	StateAssembled:         {StateExported},
}

// CanTransition reports whether a job may move from one state to another
func CanTransition(from, to JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one share link's run through the pipeline. The resolved link is
// persisted so a suspended job can resume at the fetch step.
type Job struct {
	ID               string         `json:"id" gorm:"primaryKey"`
	BatchID          string         `json:"batch_id" gorm:"index"`
	Position         int            `json:"position"`
	ShareText        string         `json:"share_text" gorm:"type:text;not null"`
	State            JobState       `json:"state" gorm:"not null;index"`
	Platform         Platform       `json:"platform,omitempty" gorm:"index"`
	ContentID        string         `json:"content_id,omitempty"`
	CanonicalURL     string         `json:"canonical_url,omitempty"`
	Title            string         `json:"title,omitempty"`
	VideoPath        string         `json:"video_path,omitempty"`
	AudioPath        string         `json:"audio_path,omitempty"`
	TranscriptOrigin SubtitleOrigin `json:"transcript_origin,omitempty"`
	FailureCategory  string         `json:"failure_category,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	FetchAttempts    int            `json:"fetch_attempts" gorm:"default:0"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// NewJob creates a job for one line of share text
func NewJob(batchID string, position int, shareText string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		BatchID:   batchID,
		Position:  position,
		ShareText: shareText,
		State:     StateReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) transition(to JobState) error {
	if !CanTransition(j.State, to) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, to)
	}
	j.State = to
	j.UpdatedAt = time.Now()
	return nil
}

func (j *Job) fail(to JobState, err error) error {
	if terr := j.transition(to); terr != nil {
		return terr
	}
	j.FailureCategory = CategoryOf(err)
	j.ErrorMessage = err.Error()
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// MarkResolved records the resolved link
func (j *Job) MarkResolved(link ResolvedLink) error {
	if err := j.transition(StateResolved); err != nil {
		return err
	}
	j.Platform = link.Platform
	j.ContentID = link.ContentID
	j.CanonicalURL = link.CanonicalURL
	return nil
}

// MarkParseFailed marks the share text as unresolvable
func (j *Job) MarkParseFailed(err error) error {
	return j.fail(StateParseFailed, err)
}

// MarkMetadataFetched records a successful fetch
func (j *Job) MarkMetadataFetched(meta *ContentMetadata) error {
	if err := j.transition(StateMetadataFetched); err != nil {
		return err
	}
	j.FetchAttempts++
	j.Title = meta.Title
	j.FailureCategory = ""
	j.ErrorMessage = ""
	j.CompletedAt = nil
	return nil
}

// MarkLoginRequired suspends the job until credentials are supplied
func (j *Job) MarkLoginRequired() error {
	if err := j.transition(StateLoginRequired); err != nil {
		return err
	}
	j.FetchAttempts++
	j.FailureCategory = CategoryOf(ErrLoginRequired)
	j.ErrorMessage = ErrLoginRequired.Error()
	return nil
}

// MarkFetchFailed marks the metadata fetch as failed
func (j *Job) MarkFetchFailed(err error) error {
	if ferr := j.fail(StateFetchFailed, err); ferr != nil {
		return ferr
	}
	j.FetchAttempts++
	return nil
}

// MarkDownloaded records the local media files
func (j *Job) MarkDownloaded(result *DownloadResult) error {
	if err := j.transition(StateDownloaded); err != nil {
		return err
	}
	j.VideoPath = result.VideoPath
	j.AudioPath = result.AudioPath
	return nil
}

// MarkDownloadFailed marks the media download as failed
func (j *Job) MarkDownloadFailed(err error) error {
	return j.fail(StateDownloadFailed, err)
}

// MarkSubtitleAttempted records the transcript origin
func (j *Job) MarkSubtitleAttempted(result SubtitleResult) error {
	if err := j.transition(StateSubtitleAttempted); err != nil {
		return err
	}
	j.TranscriptOrigin = result.Origin
	return nil
}

// MarkAssembled marks the record as built
func (j *Job) MarkAssembled() error {
	if err := j.transition(StateAssembled); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// MarkExported marks the record as written to the spreadsheet
func (j *Job) MarkExported() error {
	return j.transition(StateExported)
}

// Link returns the persisted resolution of the job
func (j *Job) Link() ResolvedLink {
	return ResolvedLink{
		Platform:     j.Platform,
		ContentID:    j.ContentID,
		CanonicalURL: j.CanonicalURL,
	}
}

// IsSuspended checks if the job is waiting for credentials
func (j *Job) IsSuspended() bool {
	return j.State == StateLoginRequired
}

// CanResume checks if the job can restart at the fetch step
func (j *Job) CanResume() bool {
	return CanTransition(j.State, StateMetadataFetched) && j.Link().Valid()
}

// CanRerun checks if a stopped job may be started again from the fetch
// step. A resolved job is either about to fetch or already being rerun.
func (j *Job) CanRerun() bool {
	return j.State != StateResolved && j.CanResume()
}

// MarkResuming returns a stopped job to resolved, where the fetch step
// starts. Persisting it through JobRepository.Claim gives one caller the
// rerun.
func (j *Job) MarkResuming() error {
	if !j.CanRerun() {
		return fmt.Errorf("job %s cannot resume from %s", j.ID, j.State)
	}
	j.State = StateResolved
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal checks if no further step will run without intervention
func (j *Job) IsTerminal() bool {
	switch j.State {
	case StateParseFailed, StateFetchFailed, StateDownloadFailed, StateExported:
		return true
	default:
		return false
	}
}

// Succeeded checks if the job produced a record
func (j *Job) Succeeded() bool {
	return j.State == StateAssembled || j.State == StateExported
}
