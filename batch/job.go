// Package batch executes many LLM requests concurrently with rate
// limiting, retries, cache lookups, and progress events.
package batch

import (
	"time"

	"github.com/c360studio/standards/llm"
)

// ItemStatus is the lifecycle state of one batch item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemCancelled  ItemStatus = "cancelled"
)

// Terminal reports whether the item has finished.
func (s ItemStatus) Terminal() bool {
	switch s {
	case ItemCompleted, ItemFailed, ItemCancelled:
		return true
	}
	return false
}

// JobStatus is the aggregate state of a batch job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Item is one request inside a batch job.
type Item struct {
	ID        string        `json:"id"`
	Request   *llm.Request  `json:"request"`
	Status    ItemStatus    `json:"status"`
	Response  *llm.Response `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	Retries   int           `json:"retries"`
	FromCache bool          `json:"from_cache"`
}

// Job is an ordered collection of items with aggregate progress.
// Progress equals terminal items over total items.
type Job struct {
	ID          string     `json:"id"`
	Items       []*Item    `json:"items"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Counts tallies item outcomes.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// counts computes the outcome tally. Caller holds the dispatcher lock.
func (j *Job) counts() Counts {
	c := Counts{Total: len(j.Items)}
	for _, item := range j.Items {
		switch item.Status {
		case ItemCompleted:
			c.Completed++
		case ItemFailed:
			c.Failed++
		case ItemCancelled:
			c.Cancelled++
		}
	}
	return c
}

// Event is a progress notification. Phase is one of started, progress,
// completed, failed, cancelled.
type Event struct {
	JobID     string  `json:"job_id"`
	Phase     string  `json:"phase"`
	Progress  float64 `json:"progress"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
}

// ProgressFunc receives progress events. Errors or panics inside a
// callback never abort the batch.
type ProgressFunc func(Event)

// Statistics summarizes dispatcher activity.
type Statistics struct {
	TotalJobs     int   `json:"total_jobs"`
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int   `json:"completed_jobs"`
	FailedJobs    int   `json:"failed_jobs"`
	CancelledJobs int   `json:"cancelled_jobs"`
	TotalItems    int   `json:"total_items"`
	CacheHits     int64 `json:"cache_hits"`
	ProviderCalls int64 `json:"provider_calls"`
}
