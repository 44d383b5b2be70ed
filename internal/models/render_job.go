package models

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "Pending"
	StatusSuccessful JobStatus = "Successful"
	// StatusFailed is reserved; nothing assigns it yet.
	StatusFailed JobStatus = "Failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// CanTransition allows only Pending -> Successful and Pending -> Failed.
func (s JobStatus) CanTransition(to JobStatus) bool {
	return s == StatusPending && to.Terminal()
}

// RenderJob is one ComfyUI prompt waiting for (or done with) its result.
type RenderJob struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"prompt_id"`
	Number    int       `json:"number"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPendingJob builds a job for a freshly queued prompt.
func NewPendingJob(id, promptID string, number int) *RenderJob {
	return &RenderJob{
		ID:        id,
		PromptID:  promptID,
		Number:    number,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
