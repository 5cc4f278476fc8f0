package briefing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/forgescene/scene-crew/internal/domain"
)

// Reader is the slice of the store the builder needs.
type Reader interface {
	GetProject(id string) (*domain.Project, error)
	ListLore(projectID string) ([]*domain.LoreFact, error)
	ListWorldState(projectID string) ([]*domain.WorldSnapshot, error)
	RecentChat(projectID string, limit int) ([]*domain.ChatEntry, error)
}

// Builder assembles the textual context passed to every agent call.
// Pure read plus string assembly; deterministic for the same stored data.
type Builder struct {
	store       Reader
	chatEntries int // how many recent chat lines to include
	chatMaxLen  int // per-line truncation bound
}

// NewBuilder creates a context builder. chatEntries <= 0 defaults to 20.
func NewBuilder(store Reader, chatEntries int) *Builder {
	if chatEntries <= 0 {
		chatEntries = 20
	}
	return &Builder{store: store, chatEntries: chatEntries, chatMaxLen: 300}
}

// Build assembles, in fixed order: project name and brief, lore facts grouped
// by category, world-state snapshots, recent chat history (truncated per
// line), and the static capability catalog.
func (b *Builder) Build(projectID string) (string, error) {
	project, err := b.store.GetProject(projectID)
	if err != nil {
		return "", fmt.Errorf("loading project %s: %w", projectID, err)
	}

	var sb strings.Builder
	sb.WriteString("# Project: " + project.Name + "\n")
	if project.Brief != "" {
		sb.WriteString(project.Brief + "\n")
	}

	lore, err := b.store.ListLore(projectID)
	if err != nil {
		return "", fmt.Errorf("loading lore: %w", err)
	}
	if len(lore) > 0 {
		sb.WriteString("\n## World lore\n")
		category := ""
		for _, f := range lore {
			if f.Category != category {
				category = f.Category
				sb.WriteString("### " + category + "\n")
			}
			sb.WriteString("- " + f.Key + ": " + f.Value + "\n")
		}
	}

	world, err := b.store.ListWorldState(projectID)
	if err != nil {
		return "", fmt.Errorf("loading world state: %w", err)
	}
	if len(world) > 0 {
		sb.WriteString("\n## Scene state\n")
		for _, w := range world {
			sb.WriteString(fmt.Sprintf("- %s.%s = %s\n", w.Entity, w.Attribute, w.Value))
		}
	}

	chat, err := b.store.RecentChat(projectID, b.chatEntries)
	if err != nil {
		return "", fmt.Errorf("loading chat: %w", err)
	}
	if len(chat) > 0 {
		sb.WriteString("\n## Recent conversation\n")
		for _, e := range chat {
			sb.WriteString(e.Speaker + ": " + truncate(e.Message, b.chatMaxLen) + "\n")
		}
	}

	sb.WriteString("\n" + capabilityBlock())
	return sb.String(), nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}
