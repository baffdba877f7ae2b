package domain

// LinkOutcome is the result of running one link through the pipeline
type LinkOutcome struct {
	JobID     string                 `json:"job_id"`
	ShareText string                 `json:"share_text"`
	State     JobState               `json:"state"`
	Platform  Platform               `json:"platform,omitempty"`
	ContentID string                 `json:"content_id,omitempty"`
	Category  string                 `json:"category,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Record    map[string]interface{} `json:"record,omitempty"`
}

// Succeeded checks if the link produced a record
func (o LinkOutcome) Succeeded() bool {
	return o.State == StateAssembled || o.State == StateExported
}

// Suspended checks if the link waits for credentials
func (o LinkOutcome) Suspended() bool {
	return o.State == StateLoginRequired
}

// Pending checks if the link is still moving through the pipeline
func (o LinkOutcome) Pending() bool {
	if o.Category != "" || o.Error != "" {
		return false
	}
	switch o.State {
	case StateReceived, StateResolved, StateMetadataFetched, StateDownloaded, StateSubtitleAttempted:
		return true
	default:
		return false
	}
}

// BatchSummary reports what happened to every link of a batch, in input order
type BatchSummary struct {
	BatchID    string         `json:"batch_id"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Suspended  int            `json:"suspended"`
	Failed     int            `json:"failed"`
	Pending    int            `json:"pending,omitempty"`
	Categories map[string]int `json:"categories"`
	Outcomes   []LinkOutcome  `json:"outcomes"`
}

// Summarize counts outcomes by result and failure category
func Summarize(batchID string, outcomes []LinkOutcome) *BatchSummary {
	summary := &BatchSummary{
		BatchID:    batchID,
		Total:      len(outcomes),
		Categories: make(map[string]int),
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		switch {
		case o.Succeeded():
			summary.Succeeded++
		case o.Suspended():
			summary.Suspended++
		case o.Pending():
			summary.Pending++
		default:
			summary.Failed++
		}
		if o.Category != "" {
			summary.Categories[o.Category]++
		}
	}
	return summary
}

// OutcomeFromJob builds an outcome from a job's persisted state
func OutcomeFromJob(job *Job) LinkOutcome {
	return LinkOutcome{
		JobID:     job.ID,
		ShareText: job.ShareText,
		State:     job.State,
		Platform:  job.Platform,
		ContentID: job.ContentID,
		Category:  job.FailureCategory,
		Error:     job.ErrorMessage,
	}
}
