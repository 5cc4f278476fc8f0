package domain

import "fmt"

// AgentName identifies one of the fixed set of agent personas.
// The set is closed: orchestration code switches over these constants
// and unknown names are a configuration error, never substituted.
type AgentName string

const (
	Strategist        AgentName = "strategist"
	Architect         AgentName = "architect"
	Programmer        AgentName = "programmer"
	NarrativeDesigner AgentName = "narrative_designer"
	Reviewer          AgentName = "reviewer"
	Composer          AgentName = "composer"
)

// AllAgents lists every known agent in registry order.
var AllAgents = []AgentName{
	Strategist,
	Architect,
	Programmer,
	NarrativeDesigner,
	Reviewer,
	Composer,
}

// AgentIdentity is the immutable registry record for one agent persona.
// Created at process start from the static registry; never mutated.
type AgentIdentity struct {
	Name       AgentName
	Role       string // human-readable role title
	Model      string // model selector passed to the completion provider
	MaxTokens  int
	PromptRole string // role-specific system prompt fragment
	WritesCode bool   // whether this agent's task output must be a code block
}

var registry = map[AgentName]AgentIdentity{
	Strategist: {
		Name:      Strategist,
		Role:      "Strategist",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		PromptRole: "You are the Strategist of a small game studio agent team. " +
			"You decompose the Boss's request into an ordered build plan. " +
			"Order tasks so the scene is built bottom-up: terrain and sky before " +
			"structures, structures before props and vegetation, lighting and " +
			"post-processing last.",
	},
	Architect: {
		Name:      Architect,
		Role:      "Architect",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 8192,
		PromptRole: "You are the Architect. You design level layout, structures and " +
			"spatial composition, and you write Unreal Editor Python to realize them.",
		WritesCode: true,
	},
	Programmer: {
		Name:      Programmer,
		Role:      "Programmer",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 8192,
		PromptRole: "You are the Programmer. You write Unreal Editor Python that runs " +
			"inside the editor process. Respond with a single ```python code block " +
			"starting with 'import unreal'. No prose outside the block.",
		WritesCode: true,
	},
	NarrativeDesigner: {
		Name:      NarrativeDesigner,
		Role:      "Narrative Designer",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		PromptRole: "You are the Narrative Designer. You maintain the world's lore and " +
			"story coherence. Your output is prose: setting, naming, and mood notes " +
			"the rest of the team builds against.",
	},
	Reviewer: {
		Name:      Reviewer,
		Role:      "Reviewer",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 8192,
		PromptRole: "You are the Reviewer. You critique generated editor scripts and " +
			"diagnose execution failures. When asked to fix failing code, respond " +
			"with a line containing [FIX] followed by a corrected ```python block.",
		WritesCode: true,
	},
	Composer: {
		Name:      Composer,
		Role:      "Composer",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		PromptRole: "You are the Composer. You describe the soundscape and music " +
			"direction for the scene. Your prose output is itself the deliverable; " +
			"nothing you produce is executed.",
	},
}

// Lookup returns the registry record for name. Unknown names are a
// configuration error for the affected task; callers must not substitute
// another agent.
func Lookup(name AgentName) (AgentIdentity, error) {
	id, ok := registry[name]
	if !ok {
		return AgentIdentity{}, fmt.Errorf("unknown agent %q", name)
	}
	return id, nil
}

// ParseAgentName validates a free-form string against the closed agent set.
func ParseAgentName(s string) (AgentName, bool) {
	name := AgentName(s)
	_, ok := registry[name]
	return name, ok
}
