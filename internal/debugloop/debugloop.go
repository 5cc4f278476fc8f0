package debugloop

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/engine"
	"github.com/forgescene/scene-crew/internal/llm"
	"github.com/forgescene/scene-crew/internal/prompts"
	"github.com/forgescene/scene-crew/internal/script"
)

// Audit mirrors diagnosis attempts into the append-only trail.
type Audit interface {
	AppendChat(entry *domain.ChatEntry) error
}

// Loop runs the bounded diagnose-fix-resubmit cycle after an execution
// failure. Each attempt is a full round trip (one completion call plus one
// execute-and-poll cycle), so the budget is deliberately small.
type Loop struct {
	completer  llm.Completer
	executor   engine.Executor
	prompts    *prompts.Loader
	audit      Audit
	maxRetries int
}

// New creates a debug loop. maxRetries <= 0 defaults to 3.
func New(completer llm.Completer, executor engine.Executor, loader *prompts.Loader, audit Audit, maxRetries int) *Loop {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Loop{
		completer:  completer,
		executor:   executor,
		prompts:    loader,
		audit:      audit,
		maxRetries: maxRetries,
	}
}

// Run diagnoses a failed execution with the Reviewer and resubmits proposed
// fixes, up to maxRetries execution attempts. When the Reviewer produces no
// fix block, the loop records the analysis and terminates unsuccessfully
// without guessing. Returns the last successful result when fixed.
func (l *Loop) Run(ctx context.Context, projectID, contextText, code, errText string, agent domain.AgentName) (domain.ExecutionResult, bool) {
	reviewer, err := domain.Lookup(domain.Reviewer)
	if err != nil {
		log.Printf("debug loop: %v", err)
		return domain.ExecutionResult{}, false
	}

	currentCode, currentErr := code, errText

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		prompt, err := l.prompts.Execute("fix", prompts.FixData{Code: currentCode, Error: currentErr})
		if err != nil {
			log.Printf("debug loop: rendering fix prompt: %v", err)
			return domain.ExecutionResult{}, false
		}

		l.append(projectID, "orchestrator",
			fmt.Sprintf("Debug attempt %d/%d: asking Reviewer to diagnose %s's failure: %s",
				attempt, l.maxRetries, agent, firstLine(currentErr)))

		response, err := l.completer.Complete(ctx, reviewer, contextText, []llm.Message{{Role: "user", Content: prompt}})
		if err != nil {
			l.append(projectID, "orchestrator", fmt.Sprintf("Reviewer unavailable during debug: %v", err))
			return domain.ExecutionResult{}, false
		}

		fix, ok := ExtractFix(response)
		if !ok {
			// No fix proposed: record the analysis and stop. Guessing a fix
			// risks executing something the Reviewer never endorsed.
			l.append(projectID, string(domain.Reviewer), response)
			l.append(projectID, "orchestrator", "Reviewer produced no fix; giving up on this execution.")
			return domain.ExecutionResult{}, false
		}

		fixed, applied := script.Validate(fix)
		if len(applied) > 0 {
			l.append(projectID, "orchestrator", "Applied fixups to proposed fix: "+strings.Join(applied, ", "))
		}

		result, err := l.executor.ExecuteAndWait(ctx, projectID, fixed, domain.Reviewer)
		if err != nil {
			l.append(projectID, "orchestrator", fmt.Sprintf("Fix submission failed: %v", err))
			return domain.ExecutionResult{}, false
		}

		if !result.Failed() {
			l.append(projectID, "orchestrator", fmt.Sprintf("Fix succeeded on debug attempt %d.", attempt))
			return result, true
		}

		// Loop with the fresh failure details for the next diagnosis.
		currentCode, currentErr = fixed, result.Err
		l.append(projectID, "orchestrator", fmt.Sprintf("Fix attempt %d failed: %s", attempt, firstLine(result.Err)))
	}

	l.append(projectID, "orchestrator", fmt.Sprintf("Debug retries exhausted after %d attempts.", l.maxRetries))
	return domain.ExecutionResult{}, false
}

// ExtractFix finds the [FIX] marker in a Reviewer response and returns the
// code block that follows it. A code block without the marker, or a marker
// without a block, is not a fix.
func ExtractFix(response string) (string, bool) {
	idx := strings.Index(response, "[FIX]")
	if idx == -1 {
		return "", false
	}
	code, ok := script.Extract(response[idx:])
	if !ok {
		return "", false
	}
	return code, true
}

func (l *Loop) append(projectID, speaker, message string) {
	if l.audit == nil {
		return
	}
	if err := l.audit.AppendChat(&domain.ChatEntry{ProjectID: projectID, Speaker: speaker, Message: message}); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
