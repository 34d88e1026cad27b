package queue

import "time"

// Status represents the lifecycle of a queued dubbing job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

// Valid reports whether the status is one of the known lifecycle values.
func (s Status) Valid() bool {
	for _, status := range allStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Item represents a dubbing job persisted in SQLite.
type Item struct {
	ID           int64
	SourceVideo  string
	SubtitlePath string
	Title        string
	Status       Status

	// Stage and progress describe the running pipeline phase for status
	// output; they carry no scheduling semantics.
	Stage           string
	ProgressPercent float64
	ProgressMessage string

	OutputPath   string
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates queue counts per lifecycle state.
type Stats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}
