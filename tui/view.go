package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/forgescene/scene-crew/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	speakerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the monitor
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.run == nil {
		if m.err != nil {
			return fmt.Sprintf("Error: %v\n", m.err)
		}
		return "Loading run...\n"
	}

	var b strings.Builder

	header := fmt.Sprintf(" Scene Crew │ Run %s │ %s │ Task %d/%d ",
		shortID(m.run.ID), m.run.Status, m.run.TaskIndex+1, len(m.tasks))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderTasks()))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderChat()))
	b.WriteString("\n")

	bar := " p pause │ r resume │ s stop │ j/k scroll │ q quit "
	if m.err != nil {
		bar = " error: " + m.err.Error() + " "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(bar))

	return b.String()
}

func (m Model) renderTasks() string {
	var b strings.Builder
	b.WriteString("Tasks\n")
	if len(m.tasks) == 0 {
		b.WriteString(dimmedStyle.Render("  (planning)"))
		return b.String()
	}

	for _, t := range m.tasks {
		line := fmt.Sprintf("  %s %-28s %s", statusGlyph(t.Status), truncate(t.Title, 28), t.AssignedTo)
		switch t.Status {
		case domain.TaskCompleted:
			line = completedStyle.Render(line)
		case domain.TaskInProgress:
			line = inProgressStyle.Render(line)
		case domain.TaskFailed:
			line = failedStyle.Render(line)
		default:
			line = dimmedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderChat() string {
	var b strings.Builder
	b.WriteString("Chat\n")

	visible := 8
	entries := m.chat
	// chatScroll counts lines back from the tail.
	end := len(entries) - m.chatScroll
	if end < 0 {
		end = 0
	}
	start := end - visible
	if start < 0 {
		start = 0
	}

	if len(entries) == 0 {
		b.WriteString(dimmedStyle.Render("  (quiet)"))
		return b.String()
	}

	for _, e := range entries[start:end] {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			speakerStyle.Render(e.Speaker+":"),
			truncate(strings.ReplaceAll(e.Message, "\n", " "), m.width-len(e.Speaker)-8)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusGlyph(s domain.TaskStatus) string {
	switch s {
	case domain.TaskCompleted:
		return "✓"
	case domain.TaskInProgress:
		return "▶"
	case domain.TaskFailed:
		return "✗"
	case domain.TaskSkipped:
		return "-"
	default:
		return "·"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
