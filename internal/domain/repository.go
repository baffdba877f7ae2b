package domain

// JobRepository defines the interface for job persistence
type JobRepository interface {
	// Create creates a new job
	Create(job *Job) error

	// CreateBatch creates all jobs of a batch in one transaction
	CreateBatch(jobs []*Job) error

	// Update updates an existing job
	Update(job *Job) error

	// FindByID finds a job by ID
	FindByID(id string) (*Job, error)

	// FindByBatch finds the jobs of a batch in input order
	FindByBatch(batchID string) ([]*Job, error)

	// Claim stores job's state only if the stored job is still in state
	// from. It reports whether this call made the change.
	Claim(job *Job, from JobState) (bool, error)

	// FindSuspended finds jobs waiting for credentials on a platform
	FindSuspended(platform Platform) ([]*Job, error)

	// FindAll finds all jobs with optional filters
	FindAll(filters map[string]interface{}) ([]*Job, error)

	// GetStats returns job statistics
	GetStats() (*JobStats, error)
}

// JobStats represents job statistics
type JobStats struct {
	Total         int64            `json:"total"`
	InProgress    int64            `json:"in_progress"`
	Exported      int64            `json:"exported"`
	Assembled     int64            `json:"assembled"`
	LoginRequired int64            `json:"login_required"`
	Failed        int64            `json:"failed"`
	ByState       map[string]int64 `json:"by_state"`
	ByPlatform    map[string]int64 `json:"by_platform"`
}

// CredentialStore persists per-platform login credentials
type CredentialStore interface {
	// Load returns the stored credentials, or nil when absent or expired
	Load(platform Platform) (*Credentials, error)

	// Save stores credentials, replacing any previous ones
	Save(creds *Credentials) error

	// Delete removes the credentials of a platform
	Delete(platform Platform) error
}
