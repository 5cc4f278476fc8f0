package domain

// TaskStatus represents the lifecycle state of a task within a run
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// Terminal reports whether the status is a terminal task state
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// RunStatus represents the state of an end-to-end run
type RunStatus string

const (
	RunPlanning  RunStatus = "planning"
	RunExecuting RunStatus = "executing"
	RunPaused    RunStatus = "paused"
	RunStopped   RunStatus = "stopped"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run can never advance again.
// A stopped or completed run is never resumed; a new Boss command starts a new run.
func (s RunStatus) Terminal() bool {
	return s == RunStopped || s == RunCompleted || s == RunFailed
}

// Signal is the externally-settable control signal the orchestrator
// observes at each per-task checkpoint.
type Signal string

const (
	SignalRunning Signal = "running"
	SignalPaused  Signal = "paused"
	SignalStopped Signal = "stopped"
)
