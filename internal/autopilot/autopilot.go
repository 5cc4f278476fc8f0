package autopilot

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/store"
)

// Runner is the run surface the autopilot drives.
// *orchestrator.Orchestrator satisfies it.
type Runner interface {
	StartRun(projectID, prompt string) (*domain.Run, error)
	ExecuteRun(ctx context.Context, run *domain.Run) error
}

// Schedules is the persistence surface the autopilot reads.
type Schedules interface {
	ListSchedules() ([]*store.Schedule, error)
	ActiveRun(projectID string) (*domain.Run, error)
}

// Autopilot fires standing Boss prompts on cron schedules. A tick that
// lands while the project already has an active run is skipped, never
// queued: the next tick will try again.
type Autopilot struct {
	store  Schedules
	runner Runner
	cron   *cron.Cron
}

// New creates an Autopilot; call Start to load schedules and begin ticking.
func New(st Schedules, runner Runner) *Autopilot {
	return &Autopilot{store: st, runner: runner, cron: cron.New()}
}

// Start registers all enabled schedules and starts the cron loop.
func (a *Autopilot) Start(ctx context.Context) error {
	schedules, err := a.store.ListSchedules()
	if err != nil {
		return err
	}

	for _, sched := range schedules {
		_, err := a.cron.AddFunc(sched.CronExpr, func() { a.fire(ctx, sched) })
		if err != nil {
			log.Printf("autopilot: schedule %d has bad cron expression %q: %v", sched.ID, sched.CronExpr, err)
			continue
		}
		log.Printf("autopilot: schedule %d for project %s at %q", sched.ID, sched.ProjectID, sched.CronExpr)
	}

	a.cron.Start()
	return nil
}

// Stop halts the cron loop. Runs already started keep going.
func (a *Autopilot) Stop() {
	a.cron.Stop()
}

func (a *Autopilot) fire(ctx context.Context, sched *store.Schedule) {
	active, err := a.store.ActiveRun(sched.ProjectID)
	if err != nil {
		log.Printf("autopilot: schedule %d: %v", sched.ID, err)
		return
	}
	if active != nil {
		log.Printf("autopilot: schedule %d skipped, project %s busy with run %s", sched.ID, sched.ProjectID, active.ID)
		return
	}

	run, err := a.runner.StartRun(sched.ProjectID, sched.Prompt)
	if err != nil {
		log.Printf("autopilot: schedule %d: %v", sched.ID, err)
		return
	}
	if err := a.runner.ExecuteRun(ctx, run); err != nil {
		log.Printf("autopilot: run %s: %v", run.ID, err)
	}
}
