package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgescene/scene-crew/internal/domain"
)

type fakeStore struct {
	run     *domain.Run
	tasks   []*domain.Task
	chat    []*domain.ChatEntry
	signals []domain.Signal
}

func (f *fakeStore) GetRun(id string) (*domain.Run, error)               { return f.run, nil }
func (f *fakeStore) ListRunTasks(runID string) ([]*domain.Task, error)   { return f.tasks, nil }
func (f *fakeStore) RecentChat(string, int) ([]*domain.ChatEntry, error) { return f.chat, nil }

func (f *fakeStore) SetSignal(runID string, sig domain.Signal) error {
	f.signals = append(f.signals, sig)
	return nil
}

func newTestModel() (Model, *fakeStore) {
	st := &fakeStore{
		run: &domain.Run{
			ID: "run-12345678", ProjectID: "p1", Status: domain.RunExecuting,
			Signal: domain.SignalRunning, TaskIndex: 1, StartedAt: time.Now(),
		},
		tasks: []*domain.Task{
			{ID: "t1", Title: "Terrain", AssignedTo: domain.Programmer, Status: domain.TaskCompleted},
			{ID: "t2", Title: "Lighthouse", AssignedTo: domain.Architect, Status: domain.TaskInProgress},
		},
		chat: []*domain.ChatEntry{
			{ID: 1, Speaker: "boss", Message: "build it"},
		},
	}
	m := NewModel(st, "run-12345678")
	return m, st
}

func refresh(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.refreshCmd()()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestUpdate_RefreshAppliesSnapshot(t *testing.T) {
	m, _ := newTestModel()
	m = refresh(t, m)

	if m.run == nil || m.run.Status != domain.RunExecuting {
		t.Fatalf("run = %+v", m.run)
	}
	if len(m.tasks) != 2 || len(m.chat) != 1 {
		t.Errorf("tasks = %d, chat = %d", len(m.tasks), len(m.chat))
	}
}

func TestUpdate_PauseKeySetsSignal(t *testing.T) {
	m, st := newTestModel()
	m = refresh(t, m)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("pause key should produce a command")
	}
	cmd() // runs the signal write

	if len(st.signals) != 1 || st.signals[0] != domain.SignalPaused {
		t.Errorf("signals = %v, want [paused]", st.signals)
	}
}

func TestUpdate_SignalKeysIgnoredWhenTerminal(t *testing.T) {
	m, st := newTestModel()
	st.run.Status = domain.RunCompleted
	m = refresh(t, m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd != nil {
		t.Error("stop key on a terminal run must be a no-op")
	}
}

func TestView_RendersTasksAndChat(t *testing.T) {
	m, _ := newTestModel()
	m = refresh(t, m)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	out := m.View()
	if !strings.Contains(out, "Terrain") || !strings.Contains(out, "Lighthouse") {
		t.Error("task titles missing from view")
	}
	if !strings.Contains(out, "boss:") {
		t.Error("chat speaker missing from view")
	}
	if !strings.Contains(out, "executing") {
		t.Error("run status missing from header")
	}
}

func TestUpdate_QuitKey(t *testing.T) {
	m, _ := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.Quit")
	}
}
