package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgescene/scene-crew/internal/domain"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			if m.run != nil && !m.run.Status.Terminal() {
				return m, m.signalCmd(domain.SignalPaused)
			}
		case "r":
			if m.run != nil && !m.run.Status.Terminal() {
				return m, m.signalCmd(domain.SignalRunning)
			}
		case "s":
			if m.run != nil && !m.run.Status.Terminal() {
				return m, m.signalCmd(domain.SignalStopped)
			}
		case "j", "down":
			if m.chatScroll < len(m.chat)-1 {
				m.chatScroll++
			}
		case "k", "up":
			if m.chatScroll > 0 {
				m.chatScroll--
			}
		case "G":
			m.chatScroll = 0 // back to the tail
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case RefreshMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.run = msg.Run
		m.tasks = msg.Tasks
		m.chat = msg.Chat
		m.lastRefresh = time.Now()
		return m, nil

	case SignalMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		// Pick up the status change promptly instead of waiting for the tick.
		return m, m.refreshCmd()
	}

	return m, nil
}
