package batch

import (
	"time"

	"github.com/google/uuid"

	"dubstitch/internal/dialogue"
	"dubstitch/internal/timeline"
)

// State tracks a batch through the encode pipeline.
type State string

const (
	StatePending   State = "pending"
	StateEncoding  State = "encoding"
	StateValidated State = "validated"
	StatePublished State = "published"
	StateFailed    State = "failed"
)

// Job is one flush block of dialogues bound for a single encoded batch video.
// A job is owned by exactly one encoding task and is discarded, intermediate
// clips deleted, once its batch video is finalized.
type Job struct {
	ID    uuid.UUID
	Index int

	// SourceStart and SourceEnd bound the job's slice of the source timeline.
	SourceStart time.Duration
	SourceEnd   time.Duration

	Dialogues []dialogue.Window
	Schedule  timeline.Schedule

	// Clips are the assembled sentence/gap clips in output-timeline order.
	Clips []string

	WorkDir    string
	OutputPath string

	State State
	Err   error
}

// NewJob creates a pending job for one flush block. sourceStart and sourceEnd
// are the block's boundaries on the source timeline; the scheduled output
// span generally differs once synthesized durations are applied.
func NewJob(index int, dialogues []dialogue.Window, sched timeline.Schedule, sourceStart, sourceEnd time.Duration, workDir, outputPath string) *Job {
	return &Job{
		ID:          uuid.New(),
		Index:       index,
		SourceStart: sourceStart,
		SourceEnd:   sourceEnd,
		Dialogues:   dialogues,
		Schedule:    sched,
		WorkDir:     workDir,
		OutputPath:  outputPath,
		State:       StatePending,
	}
}
