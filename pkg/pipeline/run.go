package pipeline

import (
	"time"

	"github.com/tallyware/tally/pkg/resource"
)

// State is the scheduler's view of a pipeline run.
type State string

const (
	StateScheduled State = "Scheduled"
	StatePending   State = "Pending"
	StateRunning   State = "Running"
	StateDone      State = "Done"
)

// Status is the outcome of a pipeline run.
type Status string

const (
	StatusRunning    Status = "Running"
	StatusSuccessful Status = "Successful"
	StatusDone       Status = "Done"
	StatusFailed     Status = "Failed"
	StatusCancel     Status = "Cancel"
)

// Run is the read model of a submitted pipeline, decoded from the pipelines
// endpoint.
type Run struct {
	RunSeq        string
	Command       string
	Stage         string
	State         State
	Status        Status
	Message       string
	UserID        string
	BatchName     string
	DateSubmitted time.Time
	NumErrors     int
	NumWarnings   int
	RunProgress   string
}

// Terminal reports whether the run has finished, in any outcome.
func (r *Run) Terminal() bool {
	return r.State == StateDone
}

// Failed reports whether the run finished unsuccessfully.
func (r *Run) Failed() bool {
	return r.Status == StatusFailed
}

// RunFromRecord builds a Run from a pipelines-endpoint record.
func RunFromRecord(rec *resource.Record) *Run {
	run := &Run{RunSeq: rec.Seq}
	if v, ok := rec.Fields["command"].(string); ok {
		run.Command = v
	}
	if v, ok := rec.Fields["stageType"].(string); ok {
		run.Stage = v
	}
	if v, ok := rec.Fields["state"].(string); ok {
		run.State = State(v)
	}
	if v, ok := rec.Fields["status"].(string); ok {
		run.Status = Status(v)
	}
	if v, ok := rec.Fields["message"].(string); ok {
		run.Message = v
	}
	if v, ok := rec.Fields["userId"].(string); ok {
		run.UserID = v
	}
	if v, ok := rec.Fields["batchName"].(string); ok {
		run.BatchName = v
	}
	if v, ok := rec.Fields["dateSubmitted"].(time.Time); ok {
		run.DateSubmitted = v
	}
	if v, ok := rec.Fields["numErrors"].(int); ok {
		run.NumErrors = v
	}
	if v, ok := rec.Fields["numWarnings"].(int); ok {
		run.NumWarnings = v
	}
	if v, ok := rec.Fields["runProgress"].(string); ok {
		run.RunProgress = v
	}
	return run
}
