package domain

import "time"

// Run is one end-to-end execution of a Boss command.
// At most one non-terminal run per project advances task pointers at a time.
type Run struct {
	ID         string
	ProjectID  string
	Prompt     string // original Boss prompt
	Status     RunStatus
	Signal     Signal // externally-settable pause/stop signal
	TaskIndex  int    // index of the task currently being worked
	Summary    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Project is the minimal project record the core reads: identity and brief.
type Project struct {
	ID    string
	Name  string
	Brief string
}

// ChatEntry is one line of the append-only chat/audit trail.
type ChatEntry struct {
	ID        int64
	ProjectID string
	RunID     string // empty for entries outside a run
	Speaker   string // agent name, "boss", or "orchestrator"
	Message   string
	CreatedAt time.Time
}

// LoreFact is an accumulated world/lore key-value fact.
type LoreFact struct {
	ProjectID string
	Category  string
	Key       string
	Value     string
}

// WorldSnapshot is an entity attribute snapshot of the scene's world state.
type WorldSnapshot struct {
	ProjectID string
	Entity    string
	Attribute string
	Value     string
	UpdatedAt time.Time
}
