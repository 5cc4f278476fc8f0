package domain

// ResultKind classifies the terminal outcome of a remote code execution.
type ResultKind string

const (
	ExecSuccess ResultKind = "success"
	ExecError   ResultKind = "error"
	ExecTimeout ResultKind = "timeout"
)

// ExecutionRequest pairs a code string with the agent that produced it.
// Ephemeral: created per submission, discarded after the result is consumed.
type ExecutionRequest struct {
	ID        string
	ProjectID string
	Agent     AgentName
	Code      string
}

// ExecutionResult is the terminal result of one remote execution.
// A timeout is treated identically to an error for retry purposes,
// distinguished only in the logged message.
type ExecutionResult struct {
	RequestID string
	Kind      ResultKind
	Output    string
	Err       string
}

// Failed reports whether the result should enter the debug-and-retry path.
func (r ExecutionResult) Failed() bool {
	return r.Kind != ExecSuccess
}

// ConsultationRound is the ephemeral record of one peer-review call-out.
type ConsultationRound struct {
	Requester   AgentName
	Topic       string
	Details     string
	Consultants []AgentName
	Responses   []ConsultResponse
}

// ConsultResponse is one (consultant, response) pair within a round.
type ConsultResponse struct {
	Consultant AgentName
	Response   string
}
