package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/llm"
)

// routing keyword groups for single-turn Boss messages
var routeRules = []struct {
	words []string
	agent domain.AgentName
}{
	{[]string{"code", "script", "python", "spawn", "execute", "api", "bug", "error", "fix"}, domain.Programmer},
	{[]string{"layout", "structure", "architecture", "placement", "composition", "design"}, domain.Architect},
	{[]string{"story", "lore", "narrative", "character", "quest", "dialogue", "backstory"}, domain.NarrativeDesigner},
	{[]string{"review", "critique", "check", "verify", "opinion"}, domain.Reviewer},
	{[]string{"music", "sound", "audio", "theme", "ambience", "soundtrack"}, domain.Composer},
}

// RouteTurn picks which single agent answers a conversational Boss message.
// First keyword group to match wins; everything else goes to the Strategist,
// whose remit is broad enough to field anything.
func RouteTurn(message string) domain.AgentName {
	lower := strings.ToLower(message)
	for _, rule := range routeRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.agent
			}
		}
	}
	return domain.Strategist
}

// NextTurn handles one conversational exchange outside a run: the Boss's
// message is routed to exactly one agent, answered with full project
// context, and both sides are appended to the chat log. Nothing is
// executed and no tasks are created.
func (o *Orchestrator) NextTurn(ctx context.Context, projectID, message string) (domain.AgentName, string, error) {
	name := RouteTurn(message)
	identity, err := domain.Lookup(name)
	if err != nil {
		return "", "", err
	}

	if err := o.store.AppendChat(&domain.ChatEntry{ProjectID: projectID, Speaker: "boss", Message: message}); err != nil {
		return "", "", fmt.Errorf("logging boss message: %w", err)
	}

	contextText, err := o.briefing.Build(projectID)
	if err != nil {
		return "", "", fmt.Errorf("building context: %w", err)
	}

	response, err := o.completer.Complete(ctx, identity, contextText, []llm.Message{{Role: "user", Content: message}})
	if err != nil {
		return "", "", err
	}

	if err := o.store.AppendChat(&domain.ChatEntry{ProjectID: projectID, Speaker: string(name), Message: response}); err != nil {
		return "", "", fmt.Errorf("logging agent reply: %w", err)
	}
	return name, response, nil
}
