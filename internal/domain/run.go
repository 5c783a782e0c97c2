package domain

import "time"

// Run kinds recorded in run history.
const (
	RunKindProcess = "process"
	RunKindCluster = "cluster"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one recorded process or cluster invocation.
type Run struct {
	ID          string
	Kind        string
	Input       string
	Output      string
	Fingerprint string
	Rows        int
	FailedRows  int
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}
