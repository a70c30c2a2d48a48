package models

import "time"

// JobStatus is the lifecycle state of an asynchronous prediction.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is the record of an asynchronous prediction request.
type Job struct {
	ID        string            `json:"id"`
	Status    JobStatus         `json:"status"`
	Symbol    string            `json:"symbol"`
	Source    string            `json:"source"`
	Result    *PredictionResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
