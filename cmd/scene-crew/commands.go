package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/forgescene/scene-crew/internal/autopilot"
	"github.com/forgescene/scene-crew/internal/briefing"
	"github.com/forgescene/scene-crew/internal/config"
	"github.com/forgescene/scene-crew/internal/consult"
	"github.com/forgescene/scene-crew/internal/debugloop"
	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/engine"
	"github.com/forgescene/scene-crew/internal/llm"
	"github.com/forgescene/scene-crew/internal/notify"
	"github.com/forgescene/scene-crew/internal/orchestrator"
	"github.com/forgescene/scene-crew/internal/planner"
	"github.com/forgescene/scene-crew/internal/prompts"
	"github.com/forgescene/scene-crew/internal/store"
	"github.com/forgescene/scene-crew/tui"
	"github.com/forgescene/scene-crew/web/api"
)

var (
	projectBrief string
	runWatch     bool
)

func init() {
	projectCmd := &cobra.Command{
		Use:   "project NAME",
		Short: "Create or update a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runProject,
	}
	projectCmd.Flags().StringVar(&projectBrief, "brief", "", "one-paragraph project brief")
	rootCmd.AddCommand(projectCmd)

	runCmd := &cobra.Command{
		Use:   "run PROJECT PROMPT",
		Short: "Run a Boss prompt end to end",
		Args:  cobra.ExactArgs(2),
		RunE:  runRun,
	}
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "monitor the run in a TUI")
	rootCmd.AddCommand(runCmd)

	planCmd := &cobra.Command{
		Use:   "plan PROJECT PROMPT",
		Short: "Show the task plan for a prompt without executing it",
		Args:  cobra.ExactArgs(2),
		RunE:  runPlan,
	}
	rootCmd.AddCommand(planCmd)

	watchCmd := &cobra.Command{
		Use:   "watch RUN_ID",
		Short: "Monitor a run in a TUI",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchCmd,
	}
	rootCmd.AddCommand(watchCmd)

	signalCmd := &cobra.Command{
		Use:   "signal RUN_ID (running|paused|stopped)",
		Short: "Pause, resume or stop a run",
		Args:  cobra.ExactArgs(2),
		RunE:  runSignal,
	}
	rootCmd.AddCommand(signalCmd)

	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agent team",
		RunE:  runAgents,
	}
	rootCmd.AddCommand(agentsCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web API and the autopilot",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// app bundles everything a command needs, wired once.
type app struct {
	cfg     *config.Config
	store   *store.Store
	orch    *orchestrator.Orchestrator
	prompts *prompts.Loader
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, err
	}

	var loader *prompts.Loader
	if cfg.General.PromptDir != "" {
		loader = prompts.NewLoader(cfg.General.PromptDir)
	} else {
		loader = prompts.NewLoader()
	}

	completer := llm.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey,
		cfg.Provider.FallbackAPIKey, cfg.Provider.Timeout())
	executor := engine.NewBridge(cfg.Engine.BaseURL, cfg.Engine.PollInterval(), cfg.Engine.Deadline())
	b := briefing.NewBuilder(st, cfg.Orchestrator.ChatContextEntries)
	pl := planner.New(completer, b, loader)
	cons := consult.New(completer, st, cfg.Orchestrator.MaxConsultants)
	debug := debugloop.New(completer, executor, loader, st, cfg.Orchestrator.MaxDebugRetries)
	notifier := notify.FromConfig(cfg.Notifications.SlackWebhook)

	orch := orchestrator.New(st, pl, b, completer, executor, cons, debug, loader, notifier, cfg.Orchestrator)

	return &app{cfg: cfg, store: st, orch: orch, prompts: loader}, nil
}

func (a *app) close() {
	a.prompts.Close()
	a.store.Close()
}

func runProject(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := &domain.Project{ID: args[0], Name: args[0], Brief: projectBrief}
	if err := a.store.UpsertProject(p); err != nil {
		return err
	}
	fmt.Printf("Project %s ready\n", p.ID)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	run, err := a.orch.StartRun(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Run %s started\n", run.ID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runWatch {
		go a.orch.ExecuteRun(ctx, run)
		p := tea.NewProgram(tui.NewModel(a.store, run.ID), tea.WithAltScreen())
		_, err := p.Run()
		return err
	}

	if err := a.orch.ExecuteRun(ctx, run); err != nil {
		return err
	}

	final, err := a.store.GetRun(run.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: %s\n", final.Status, final.Summary)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	projectID, prompt := args[0], args[1]

	if steps, ok := planner.QuickBuild(prompt); ok {
		fmt.Println("Quick build plan:")
		for i, step := range steps {
			fmt.Printf("  %d. %s\n", i+1, step.Name)
		}
		return nil
	}

	pl := planner.New(
		llm.NewClient(a.cfg.Provider.BaseURL, a.cfg.Provider.APIKey,
			a.cfg.Provider.FallbackAPIKey, a.cfg.Provider.Timeout()),
		briefing.NewBuilder(a.store, a.cfg.Orchestrator.ChatContextEntries),
		a.prompts,
	)

	tasks, err := pl.PlanTasks(cmd.Context(), projectID, uuid.NewString(), prompt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tAGENT\tDESCRIPTION")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.OrderIndex+1, t.Title, t.AssignedTo, t.Description)
	}
	return w.Flush()
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(tui.NewModel(a.store, args[0]), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runSignal(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	sig := domain.Signal(args[1])
	switch sig {
	case domain.SignalRunning, domain.SignalPaused, domain.SignalStopped:
	default:
		return fmt.Errorf("unknown signal %q", args[1])
	}

	if err := a.store.SetSignal(args[0], sig); err != nil {
		return err
	}
	fmt.Printf("Run %s signalled %s\n", args[0], sig)
	return nil
}

func runAgents(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLE\tMODEL\tWRITES CODE")
	for _, name := range domain.AllAgents {
		identity, err := domain.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", identity.Name, identity.Role, identity.Model, identity.WritesCode)
	}
	return w.Flush()
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.prompts.Watch(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", a.cfg.Web.Host, a.cfg.Web.Port)
	server := api.NewServer(a.store, a.orch, addr)
	pilot := autopilot.New(a.store, a.orch)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Printf("API listening on %s\n", addr)
		return server.Start(ctx)
	})
	g.Go(func() error {
		if err := pilot.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		pilot.Stop()
		return nil
	})

	return g.Wait()
}
