package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgescene/scene-crew/internal/domain"
)

// Store is the read/control surface the monitor needs.
type Store interface {
	GetRun(id string) (*domain.Run, error)
	ListRunTasks(runID string) ([]*domain.Task, error)
	RecentChat(projectID string, limit int) ([]*domain.ChatEntry, error)
	SetSignal(runID string, sig domain.Signal) error
}

// Model is the run monitor: a live view of one run's tasks and chat,
// with pause/resume/stop keys wired to the run's control signal.
type Model struct {
	store Store
	runID string

	run   *domain.Run
	tasks []*domain.Task
	chat  []*domain.ChatEntry
	err   error

	width      int
	height     int
	chatScroll int

	lastRefresh time.Time
}

// NewModel creates a monitor for the given run.
func NewModel(store Store, runID string) Model {
	return Model{store: store, runID: runID}
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

// TickMsg triggers a refresh.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// RefreshMsg carries the latest run snapshot.
type RefreshMsg struct {
	Run   *domain.Run
	Tasks []*domain.Task
	Chat  []*domain.ChatEntry
	Err   error
}

func (m Model) refreshCmd() tea.Cmd {
	store, runID := m.store, m.runID
	return func() tea.Msg {
		run, err := store.GetRun(runID)
		if err != nil {
			return RefreshMsg{Err: err}
		}
		tasks, err := store.ListRunTasks(runID)
		if err != nil {
			return RefreshMsg{Run: run, Err: err}
		}
		chat, err := store.RecentChat(run.ProjectID, 50)
		if err != nil {
			return RefreshMsg{Run: run, Tasks: tasks, Err: err}
		}
		return RefreshMsg{Run: run, Tasks: tasks, Chat: chat}
	}
}

// SignalMsg reports the outcome of a signal keypress.
type SignalMsg struct {
	Signal domain.Signal
	Err    error
}

func (m Model) signalCmd(sig domain.Signal) tea.Cmd {
	store, runID := m.store, m.runID
	return func() tea.Msg {
		return SignalMsg{Signal: sig, Err: store.SetSignal(runID, sig)}
	}
}
