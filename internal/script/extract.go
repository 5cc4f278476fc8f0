package script

import (
	"regexp"
	"strings"
)

// Agent responses are free text; code arrives as fenced blocks. The first
// python-tagged fence wins; an untagged fence is accepted only if nothing
// tagged is present.
var (
	taggedFence   = regexp.MustCompile("(?s)```(?:python|py)\\s*\n(.*?)```")
	untaggedFence = regexp.MustCompile("(?s)```\\s*\n(.*?)```")
)

// Extract pulls the first fenced editor-script block out of free text.
// Returns the trimmed body and true, or "" and false when no block exists.
// Absence of code is not an error; callers decide whether it was expected.
func Extract(text string) (string, bool) {
	if m := taggedFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := untaggedFence.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		// An untagged fence is only trusted when it reads like engine script.
		if LooksExecutable(body) {
			return body, true
		}
	}
	return "", false
}

// LooksExecutable reports whether a block is genuine scene-building code.
// The gate is the bootstrap import of the editor scripting API; it is a
// cheap heuristic, not a compiler.
func LooksExecutable(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "import unreal" || strings.HasPrefix(trimmed, "import unreal ") ||
			strings.HasPrefix(trimmed, "from unreal import") {
			return true
		}
	}
	return false
}

// fixup rewrites one known-wrong API pattern to the known-correct one.
type fixup struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

var fixups = []fixup{
	{
		// EditorLevelLibrary was deprecated; route through the actor subsystem.
		name:    "editor_level_library_spawn",
		pattern: regexp.MustCompile(`unreal\.EditorLevelLibrary\.spawn_actor_from_class`),
		replace: "unreal.get_editor_subsystem(unreal.EditorActorSubsystem).spawn_actor_from_class",
	},
	{
		name:    "editor_level_library_all_actors",
		pattern: regexp.MustCompile(`unreal\.EditorLevelLibrary\.get_all_level_actors`),
		replace: "unreal.get_editor_subsystem(unreal.EditorActorSubsystem).get_all_level_actors",
	},
	{
		// Model output sometimes carries typographic quotes that break Python.
		name:    "smart_quotes",
		pattern: regexp.MustCompile("[“”]"),
		replace: `"`,
	},
	{
		name:    "smart_apostrophes",
		pattern: regexp.MustCompile("[‘’]"),
		replace: `'`,
	},
}

// Validate applies the known-safe textual fixups and reports which applied.
// Best-effort: when no fixup matches, the returned code equals the input.
// Code is never dropped here.
func Validate(code string) (fixed string, applied []string) {
	fixed = code
	for _, f := range fixups {
		if f.pattern.MatchString(fixed) {
			fixed = f.pattern.ReplaceAllString(fixed, f.replace)
			applied = append(applied, f.name)
		}
	}
	return fixed, applied
}

// Fence wraps code back into a python fence, the inverse of Extract.
func Fence(code string) string {
	return "```python\n" + code + "\n```"
}
