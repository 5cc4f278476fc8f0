package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/forgescene/scene-crew/internal/briefing"
	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/llm"
	"github.com/forgescene/scene-crew/internal/prompts"
	"github.com/google/uuid"
)

// PlanItem is one parsed task line before it becomes a persisted Task.
type PlanItem struct {
	Title       string
	Description string
	Agent       domain.AgentName
}

// Planner turns a free-text Boss command into an ordered task list by
// asking the Strategist, with a degrade-gracefully fallback when the
// Strategist's output format drifts.
type Planner struct {
	completer llm.Completer
	briefing  *briefing.Builder
	prompts   *prompts.Loader
}

// New creates a Planner.
func New(completer llm.Completer, b *briefing.Builder, loader *prompts.Loader) *Planner {
	return &Planner{completer: completer, briefing: b, prompts: loader}
}

// PlanTasks asks the Strategist to decompose bossPrompt and parses the
// result. Zero parseable tasks degrades to a single fallback task assigned
// to the Programmer carrying the full original prompt: a run that does
// something beats a run that does nothing.
func (p *Planner) PlanTasks(ctx context.Context, projectID, runID, bossPrompt string) ([]*domain.Task, error) {
	contextText, err := p.briefing.Build(projectID)
	if err != nil {
		return nil, fmt.Errorf("building context: %w", err)
	}

	planPrompt, err := p.prompts.Execute("plan", prompts.PlanData{Prompt: bossPrompt})
	if err != nil {
		return nil, fmt.Errorf("rendering plan prompt: %w", err)
	}

	strategist, err := domain.Lookup(domain.Strategist)
	if err != nil {
		return nil, err
	}

	response, err := p.completer.Complete(ctx, strategist, contextText, []llm.Message{{Role: "user", Content: planPrompt}})
	if err != nil {
		return nil, fmt.Errorf("strategist planning call: %w", err)
	}

	items := ParsePlanLines(response)
	if len(items) == 0 {
		items = ParsePlanJSON(response)
	}
	if len(items) == 0 {
		items = []PlanItem{{
			Title:       "Build the Boss's request",
			Description: bossPrompt,
			Agent:       domain.Programmer,
		}}
	}

	return materialize(runID, items), nil
}

// materialize converts plan items to Task records in emitted order.
// The planner never reorders or deduplicates; ordering is the Strategist's
// prompting concern.
func materialize(runID string, items []PlanItem) []*domain.Task {
	now := time.Now()
	tasks := make([]*domain.Task, len(items))
	for i, item := range items {
		tasks[i] = &domain.Task{
			ID:          uuid.NewString(),
			RunID:       runID,
			OrderIndex:  i,
			Title:       item.Title,
			Description: item.Description,
			AssignedTo:  item.Agent,
			Status:      domain.TaskPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return tasks
}

// ParsePlanLines parses the strict line-based output contract:
//
//	TASK: <title> | <description> | <agent>
//
// Lines that do not match are ignored; lines naming an unknown agent are
// dropped, never guessed-and-kept.
func ParsePlanLines(text string) []PlanItem {
	var items []PlanItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "TASK:") {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(line, "TASK:"), "|")
		if len(parts) != 3 {
			continue
		}
		agentStr := strings.ToLower(strings.TrimSpace(parts[2]))
		agent, ok := domain.ParseAgentName(agentStr)
		if !ok {
			continue
		}
		title := strings.TrimSpace(parts[0])
		if title == "" {
			continue
		}
		items = append(items, PlanItem{
			Title:       title,
			Description: strings.TrimSpace(parts[1]),
			Agent:       agent,
		})
	}
	return items
}

type planJSON struct {
	Tasks []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Agent       string `json:"agent"`
	} `json:"tasks"`
}

// ParsePlanJSON is the alternative structured path: a JSON object with a
// tasks array. The same agent-name validation applies.
func ParsePlanJSON(text string) []PlanItem {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil
	}

	var parsed planJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil
	}

	var items []PlanItem
	for _, t := range parsed.Tasks {
		agent, ok := domain.ParseAgentName(strings.ToLower(strings.TrimSpace(t.Agent)))
		if !ok || strings.TrimSpace(t.Title) == "" {
			continue
		}
		items = append(items, PlanItem{
			Title:       strings.TrimSpace(t.Title),
			Description: strings.TrimSpace(t.Description),
			Agent:       agent,
		})
	}
	return items
}
