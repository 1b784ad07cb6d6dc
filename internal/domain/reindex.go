package domain

import "time"

// TaskStatus is the lifecycle state of a reindex task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ReindexTask is a point-in-time snapshot of a background reindex.
// ProcessedCount counts items attempted (including per-item failures,
// which are tallied separately in FailedCount and never abort the task).
type ReindexTask struct {
	ID             string
	Status         TaskStatus
	ProcessedCount int
	FailedCount    int
	TotalCount     int
	LastError      string
	StartedAt      time.Time
	FinishedAt     time.Time
}
