package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgescene/scene-crew/internal/briefing"
	"github.com/forgescene/scene-crew/internal/config"
	"github.com/forgescene/scene-crew/internal/consult"
	"github.com/forgescene/scene-crew/internal/debugloop"
	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/engine"
	"github.com/forgescene/scene-crew/internal/llm"
	"github.com/forgescene/scene-crew/internal/notify"
	"github.com/forgescene/scene-crew/internal/planner"
	"github.com/forgescene/scene-crew/internal/prompts"
	"github.com/forgescene/scene-crew/internal/script"
	"github.com/forgescene/scene-crew/internal/store"
)

// Store is the persistence surface the run loop depends on.
// *store.Store satisfies it; tests substitute an in-memory one.
type Store interface {
	CreateRun(run *domain.Run) error
	GetRun(id string) (*domain.Run, error)
	ActiveRun(projectID string) (*domain.Run, error)
	UpdateRunStatus(id string, status domain.RunStatus) error
	UpdateRunTaskIndex(id string, index int) error
	FinalizeRun(id string, status domain.RunStatus, summary string) error
	SetSignal(runID string, sig domain.Signal) error
	GetSignal(runID string) (domain.Signal, error)
	InsertTasks(tasks []*domain.Task) error
	UpdateTask(task *domain.Task) error
	ListRunTasks(runID string) ([]*domain.Task, error)
	AppendChat(entry *domain.ChatEntry) error
}

var _ Store = (*store.Store)(nil)

// Orchestrator drives runs end to end: plan, dispatch tasks to agents,
// execute generated code, contain failures, and finalize. One run per
// project advances at a time; pause and stop arrive through the store's
// signal column and are honored at per-task checkpoints only.
type Orchestrator struct {
	store     Store
	planner   *planner.Planner
	briefing  *briefing.Builder
	completer llm.Completer
	executor  engine.Executor
	consult   *consult.Service
	debug     *debugloop.Loop
	prompts   *prompts.Loader
	notifier  notify.Notifier
	cfg       config.OrchestratorConfig
}

// New wires an Orchestrator from its collaborators.
func New(st Store, pl *planner.Planner, b *briefing.Builder, completer llm.Completer,
	executor engine.Executor, cons *consult.Service, debug *debugloop.Loop,
	loader *prompts.Loader, notifier notify.Notifier, cfg config.OrchestratorConfig) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if cfg.MaxTaskReasks <= 0 {
		cfg.MaxTaskReasks = 3
	}
	if cfg.ReviewEveryNTasks <= 0 {
		cfg.ReviewEveryNTasks = 2
	}
	return &Orchestrator{
		store:     st,
		planner:   pl,
		briefing:  b,
		completer: completer,
		executor:  executor,
		consult:   cons,
		debug:     debug,
		prompts:   loader,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// StartRun creates a run for the Boss prompt and returns it without
// executing. The caller decides whether to run ExecuteRun inline (CLI) or
// in a goroutine (web API). Rejected when the project already has a
// non-terminal run.
func (o *Orchestrator) StartRun(projectID, prompt string) (*domain.Run, error) {
	active, err := o.store.ActiveRun(projectID)
	if err != nil {
		return nil, fmt.Errorf("checking active run: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("project %s already has active run %s (%s)", projectID, active.ID, active.Status)
	}

	run := &domain.Run{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Prompt:    prompt,
		Status:    domain.RunPlanning,
		Signal:    domain.SignalRunning,
		StartedAt: time.Now(),
	}
	if err := o.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	o.say(run, "boss", prompt)
	return run, nil
}

// ExecuteRun drives a run created by StartRun to a terminal state. It
// always finalizes the run record, even on planning failure. Individual
// task failures never abort the run; a stop signal or context cancellation
// does, at the next checkpoint.
func (o *Orchestrator) ExecuteRun(ctx context.Context, run *domain.Run) error {
	return o.ExecuteRunWith(ctx, run, false)
}

// ExecuteRunWith is ExecuteRun with the quick-build fast path optionally
// disabled, forcing even keyword-matching prompts through the Strategist.
func (o *Orchestrator) ExecuteRunWith(ctx context.Context, run *domain.Run, disableQuickBuild bool) error {
	tasks, quickCode, err := o.plan(ctx, run, disableQuickBuild)
	if err != nil {
		o.say(run, "orchestrator", fmt.Sprintf("Planning failed: %v", err))
		o.finalize(run, domain.RunFailed, fmt.Sprintf("planning failed: %v", err))
		return err
	}

	if err := o.store.InsertTasks(tasks); err != nil {
		o.finalize(run, domain.RunFailed, fmt.Sprintf("persisting plan: %v", err))
		return err
	}
	if err := o.store.UpdateRunStatus(run.ID, domain.RunExecuting); err != nil {
		o.finalize(run, domain.RunFailed, fmt.Sprintf("marking run executing: %v", err))
		return err
	}
	o.say(run, "orchestrator", planSummary(tasks))

	var completed, failed int
	for i, task := range tasks {
		proceed, stopErr := o.checkpoint(ctx, run)
		if stopErr != nil {
			return stopErr
		}
		if !proceed {
			o.finalize(run, domain.RunStopped,
				fmt.Sprintf("Stopped by the Boss after %d of %d tasks.", completed, len(tasks)))
			return nil
		}

		if err := o.store.UpdateRunTaskIndex(run.ID, i); err != nil {
			log.Printf("run %s: updating task index: %v", run.ID, err)
		}

		if code, isQuick := quickCode[task.ID]; isQuick {
			o.runQuickStep(ctx, run, task, code)
		} else {
			o.dispatchTask(ctx, run, task, i, len(tasks))
		}

		if task.Status == domain.TaskCompleted {
			completed++
		} else {
			failed++
		}

		done := completed + failed
		if done%o.cfg.ReviewEveryNTasks == 0 && done < len(tasks) {
			o.progressReview(ctx, run, tasks, completed, failed)
		}
	}

	o.cinematicPass(ctx, run)

	summary := fmt.Sprintf("Completed %d of %d tasks.", completed, len(tasks))
	if failed > 0 {
		summary = fmt.Sprintf("Completed %d of %d tasks (%d failed).", completed, len(tasks), failed)
	}
	o.finalize(run, domain.RunCompleted, summary)
	return nil
}

// plan produces the run's task list. Quick Build prompts bypass the
// Strategist entirely and carry pre-authored code keyed by task ID;
// everything else goes through the LLM planner.
func (o *Orchestrator) plan(ctx context.Context, run *domain.Run, disableQuickBuild bool) ([]*domain.Task, map[string]string, error) {
	if steps, ok := planner.QuickBuild(run.Prompt); ok && !disableQuickBuild {
		o.say(run, "orchestrator", fmt.Sprintf("Quick build matched; running %d pre-authored steps.", len(steps)))
		now := time.Now()
		tasks := make([]*domain.Task, len(steps))
		quickCode := make(map[string]string, len(steps))
		for i, step := range steps {
			tasks[i] = &domain.Task{
				ID:          uuid.NewString(),
				RunID:       run.ID,
				OrderIndex:  i,
				Title:       step.Name,
				Description: "pre-authored quick build step",
				AssignedTo:  domain.Programmer,
				Status:      domain.TaskPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			quickCode[tasks[i].ID] = step.Code
		}
		return tasks, quickCode, nil
	}

	tasks, err := o.planner.PlanTasks(ctx, run.ProjectID, run.ID, run.Prompt)
	if err != nil {
		return nil, nil, err
	}
	return tasks, nil, nil
}

// checkpoint reads the control signal before a task starts. Returns
// proceed=false when the run should stop. A pause blocks here, polling
// until resumed, stopped, or the context ends; the in-flight state the
// Boss paused at is exactly the task boundary.
func (o *Orchestrator) checkpoint(ctx context.Context, run *domain.Run) (bool, error) {
	sig, err := o.store.GetSignal(run.ID)
	if err != nil {
		return false, fmt.Errorf("reading signal: %w", err)
	}

	switch sig {
	case domain.SignalStopped:
		return false, nil
	case domain.SignalRunning:
		return true, nil
	}

	// Paused: park at this boundary until the signal changes.
	if err := o.store.UpdateRunStatus(run.ID, domain.RunPaused); err != nil {
		return false, err
	}
	o.say(run, "orchestrator", "Run paused.")

	ticker := time.NewTicker(o.cfg.SignalPoll())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
			sig, err := o.store.GetSignal(run.ID)
			if err != nil {
				return false, fmt.Errorf("reading signal: %w", err)
			}
			switch sig {
			case domain.SignalStopped:
				return false, nil
			case domain.SignalRunning:
				if err := o.store.UpdateRunStatus(run.ID, domain.RunExecuting); err != nil {
					return false, err
				}
				o.say(run, "orchestrator", "Run resumed.")
				return true, nil
			}
		}
	}
}

// dispatchTask runs one planned task to a terminal task status. Code tasks
// go through extraction, validation, execution, and the debug loop; prose
// tasks complete on the first response. Failures mark the task failed and
// return; the run loop carries on.
func (o *Orchestrator) dispatchTask(ctx context.Context, run *domain.Run, task *domain.Task, index, total int) {
	task.Status = domain.TaskInProgress
	if err := o.store.UpdateTask(task); err != nil {
		log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
	}

	identity, err := domain.Lookup(task.AssignedTo)
	if err != nil {
		o.failTask(run, task, fmt.Sprintf("unassignable task: %v", err))
		return
	}

	contextText, err := o.briefing.Build(run.ProjectID)
	if err != nil {
		o.failTask(run, task, fmt.Sprintf("building context: %v", err))
		return
	}

	taskPrompt, err := o.prompts.Execute("task", prompts.TaskData{
		Index:       index + 1,
		Total:       total,
		Title:       task.Title,
		Description: task.Description,
		WantsCode:   identity.WritesCode,
	})
	if err != nil {
		o.failTask(run, task, fmt.Sprintf("rendering task prompt: %v", err))
		return
	}

	o.say(run, "orchestrator", fmt.Sprintf("Task %d/%d %q -> %s", index+1, total, task.Title, task.AssignedTo))

	history := []llm.Message{{Role: "user", Content: taskPrompt}}
	response, err := o.completer.Complete(ctx, identity, contextText, history)
	if err != nil {
		o.failTask(run, task, fmt.Sprintf("completion failed: %v", err))
		return
	}
	o.say(run, string(task.AssignedTo), response)

	if o.consult != nil {
		if should, topic := consult.ShouldAutoConsult(task.AssignedTo, response); should {
			if _, err := o.consult.Consult(ctx, run.ProjectID, task.AssignedTo, topic, response, contextText); err != nil {
				log.Printf("run %s: consultation: %v", run.ID, err)
			}
		}
	}

	if !identity.WritesCode {
		task.Status = domain.TaskCompleted
		task.Result = response
		if err := o.store.UpdateTask(task); err != nil {
			log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
		}
		return
	}

	code, ok := o.extractCode(ctx, run, task, identity, contextText, &history, response)
	if !ok {
		o.failTask(run, task, fmt.Sprintf("no runnable code after %d attempts", o.cfg.MaxTaskReasks))
		return
	}

	o.executeTaskCode(ctx, run, task, contextText, code)
}

// extractCode pulls a runnable block out of the agent's response, re-asking
// up to MaxTaskReasks total completion attempts when the response has no
// block or lacks the editor bootstrap import. Every re-ask increments the
// task's retry counter and persists it.
func (o *Orchestrator) extractCode(ctx context.Context, run *domain.Run, task *domain.Task, identity domain.AgentIdentity,
	contextText string, history *[]llm.Message, response string) (string, bool) {
	for attempt := 1; ; attempt++ {
		code, ok := script.Extract(response)
		if ok && script.LooksExecutable(code) {
			return code, true
		}

		if attempt >= o.cfg.MaxTaskReasks {
			return "", false
		}

		task.Retries++
		if err := o.store.UpdateTask(task); err != nil {
			log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
		}

		nudge := "Your reply contained no runnable code. Respond with a single ```python block starting with 'import unreal'."
		if ok {
			nudge = "Your code block does not import the editor API. Respond with a single ```python block starting with 'import unreal'."
		}
		o.say(run, "orchestrator", fmt.Sprintf("Re-asking %s for code (attempt %d/%d).", identity.Name, attempt+1, o.cfg.MaxTaskReasks))

		*history = append(*history,
			llm.Message{Role: "assistant", Content: response},
			llm.Message{Role: "user", Content: nudge},
		)
		next, err := o.completer.Complete(ctx, identity, contextText, *history)
		if err != nil {
			o.say(run, "orchestrator", fmt.Sprintf("Re-ask failed: %v", err))
			return "", false
		}
		response = next
		o.say(run, string(identity.Name), response)
	}
}

// executeTaskCode validates, submits, and on failure hands off to the
// debug loop. The task ends completed or failed; either way the run
// continues.
func (o *Orchestrator) executeTaskCode(ctx context.Context, run *domain.Run, task *domain.Task, contextText, code string) {
	fixed, applied := script.Validate(code)
	if len(applied) > 0 {
		o.say(run, "orchestrator", "Applied fixups: "+strings.Join(applied, ", "))
	}

	result, err := o.executor.ExecuteAndWait(ctx, run.ProjectID, fixed, task.AssignedTo)
	if err != nil {
		o.failTask(run, task, fmt.Sprintf("submission failed: %v", err))
		return
	}

	if result.Failed() {
		o.say(run, "orchestrator", fmt.Sprintf("Execution failed (%s): %s", result.Kind, result.Err))
		if o.debug != nil {
			recovered, ok := o.debug.Run(ctx, run.ProjectID, contextText, fixed, result.Err, task.AssignedTo)
			if ok {
				result = recovered
			}
		}
	}

	if result.Failed() {
		o.failTask(run, task, result.Err)
		return
	}

	task.Status = domain.TaskCompleted
	task.Result = result.Output
	if err := o.store.UpdateTask(task); err != nil {
		log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
	}
	o.say(run, "orchestrator", fmt.Sprintf("Task %q completed.", task.Title))
}

// runQuickStep executes one pre-authored step directly. No completion
// calls, no consultation; the code is trusted, but execution failures
// still go through the debug loop.
func (o *Orchestrator) runQuickStep(ctx context.Context, run *domain.Run, task *domain.Task, code string) {
	task.Status = domain.TaskInProgress
	if err := o.store.UpdateTask(task); err != nil {
		log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
	}
	o.say(run, "orchestrator", fmt.Sprintf("Quick step %q.", task.Title))
	o.executeTaskCode(ctx, run, task, "", code)
}

// progressReview asks the Reviewer for a short mid-run assessment.
// Strictly best-effort: any failure is logged and the run moves on.
func (o *Orchestrator) progressReview(ctx context.Context, run *domain.Run, tasks []*domain.Task, completed, failed int) {
	reviewer, err := domain.Lookup(domain.Reviewer)
	if err != nil {
		return
	}

	var recent []string
	for _, t := range tasks {
		if t.Status.Terminal() {
			recent = append(recent, fmt.Sprintf("%s: %s", t.Title, t.Status))
		}
	}
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}

	prompt, err := o.prompts.Execute("review", prompts.ReviewData{
		Done:   completed + failed,
		Total:  len(tasks),
		Failed: failed,
		Recent: strings.Join(recent, "\n"),
	})
	if err != nil {
		log.Printf("run %s: rendering review prompt: %v", run.ID, err)
		return
	}

	response, err := o.completer.Complete(ctx, reviewer, "", []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Printf("run %s: progress review: %v", run.ID, err)
		return
	}
	o.say(run, string(domain.Reviewer), response)
}

// cinematicPass places the flythrough camera as the run's final touch.
// It may fail without affecting the run's classification.
func (o *Orchestrator) cinematicPass(ctx context.Context, run *domain.Run) {
	result, err := o.executor.ExecuteAndWait(ctx, run.ProjectID, planner.CinematicCameraCode(), domain.Programmer)
	if err != nil {
		log.Printf("run %s: cinematic camera: %v", run.ID, err)
		return
	}
	if result.Failed() {
		o.say(run, "orchestrator", "Cinematic camera step failed; leaving the scene as built.")
		return
	}
	o.say(run, "orchestrator", "Cinematic camera placed.")
}

func (o *Orchestrator) failTask(run *domain.Run, task *domain.Task, reason string) {
	task.Status = domain.TaskFailed
	task.Error = reason
	if err := o.store.UpdateTask(task); err != nil {
		log.Printf("run %s: updating task %s: %v", run.ID, task.ID, err)
	}
	o.say(run, "orchestrator", fmt.Sprintf("Task %q failed: %s", task.Title, firstLine(reason)))
}

func (o *Orchestrator) finalize(run *domain.Run, status domain.RunStatus, summary string) {
	if err := o.store.FinalizeRun(run.ID, status, summary); err != nil {
		log.Printf("run %s: finalizing: %v", run.ID, err)
	}
	o.say(run, "orchestrator", fmt.Sprintf("Run %s: %s", status, summary))

	if err := o.notifier.Notify(context.Background(), fmt.Sprintf("Run %s", status), summary); err != nil {
		log.Printf("run %s: notification: %v", run.ID, err)
	}
}

func (o *Orchestrator) say(run *domain.Run, speaker, message string) {
	entry := &domain.ChatEntry{ProjectID: run.ProjectID, RunID: run.ID, Speaker: speaker, Message: message}
	if err := o.store.AppendChat(entry); err != nil {
		log.Printf("run %s: audit append: %v", run.ID, err)
	}
}

func planSummary(tasks []*domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Planned %d tasks:", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n%d. %s (%s)", t.OrderIndex+1, t.Title, t.AssignedTo)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
