package domain

import "time"

// Task is one unit of work within a run, assigned to exactly one agent.
// Owned by the orchestrator for the duration of its run; never mutated
// concurrently by two runs.
type Task struct {
	ID          string
	RunID       string
	OrderIndex  int
	Title       string
	Description string
	AssignedTo  AgentName
	Status      TaskStatus
	Retries     int
	Result      string // optional result text (execution output or prose deliverable)
	Error       string // optional error text from the last failure
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
