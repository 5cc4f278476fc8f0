package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/forgescene/scene-crew/internal/briefing"
	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/llm"
	"github.com/forgescene/scene-crew/internal/prompts"
)

func TestParsePlanLines_WellFormed(t *testing.T) {
	text := `Here is the plan:
TASK: Terrain | Create the island terrain | programmer
TASK: Lighthouse | Place a lighthouse on the cliff | architect
TASK: Backstory | Write the keeper's backstory | narrative_designer
That's all.`

	items := ParsePlanLines(text)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[0].Title != "Terrain" || items[0].Agent != domain.Programmer {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[2].Agent != domain.NarrativeDesigner {
		t.Errorf("items[2].Agent = %s", items[2].Agent)
	}
}

func TestParsePlanLines_UnknownAgentDropped(t *testing.T) {
	text := `TASK: A | a | programmer
TASK: B | b | intern
TASK: C | c | reviewer`

	items := ParsePlanLines(text)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (unknown agent dropped, not guessed)", len(items))
	}
	for _, item := range items {
		if item.Title == "B" {
			t.Error("task with unknown agent survived")
		}
	}
}

func TestParsePlanLines_MalformedIgnored(t *testing.T) {
	text := `TASK: missing parts | programmer
TASK: | empty title | programmer
TASK too few colons
TASK: Good | desc | programmer`

	items := ParsePlanLines(text)
	if len(items) != 1 || items[0].Title != "Good" {
		t.Errorf("items = %+v, want only the well-formed line", items)
	}
}

func TestParsePlanJSON(t *testing.T) {
	text := "Sure, here you go:\n" +
		`{"tasks":[{"title":"Terrain","description":"ground","agent":"programmer"},` +
		`{"title":"Bad","description":"x","agent":"nobody"},` +
		`{"title":"Trees","description":"forest","agent":"architect"}]}`

	items := ParsePlanJSON(text)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Title != "Terrain" || items[1].Agent != domain.Architect {
		t.Errorf("items = %+v", items)
	}
}

func TestParsePlanJSON_Garbage(t *testing.T) {
	if items := ParsePlanJSON("no json here"); items != nil {
		t.Errorf("items = %+v, want nil", items)
	}
	if items := ParsePlanJSON("{broken"); items != nil {
		t.Errorf("items = %+v, want nil", items)
	}
}

// scripted completer returns a fixed response for any agent
type scriptedCompleter struct {
	response string
	calls    int
}

func (s *scriptedCompleter) Complete(ctx context.Context, agent domain.AgentIdentity, contextText string, history []llm.Message) (string, error) {
	s.calls++
	return s.response, nil
}

type planReader struct{}

func (planReader) GetProject(id string) (*domain.Project, error) {
	return &domain.Project{ID: id, Name: "P", Brief: "brief"}, nil
}
func (planReader) ListLore(string) ([]*domain.LoreFact, error)            { return nil, nil }
func (planReader) ListWorldState(string) ([]*domain.WorldSnapshot, error) { return nil, nil }
func (planReader) RecentChat(string, int) ([]*domain.ChatEntry, error)    { return nil, nil }

func newTestPlanner(response string) (*Planner, *scriptedCompleter) {
	c := &scriptedCompleter{response: response}
	return New(c, briefing.NewBuilder(planReader{}, 20), prompts.NewLoader()), c
}

func TestPlanTasks_OrderPreserved(t *testing.T) {
	p, _ := newTestPlanner(`TASK: One | first | programmer
TASK: Two | second | architect
TASK: Three | third | composer`)

	tasks, err := p.PlanTasks(context.Background(), "p1", "r1", "build it")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	for i, want := range []string{"One", "Two", "Three"} {
		if tasks[i].Title != want {
			t.Errorf("tasks[%d].Title = %q, want %q", i, tasks[i].Title, want)
		}
		if tasks[i].OrderIndex != i {
			t.Errorf("tasks[%d].OrderIndex = %d", i, tasks[i].OrderIndex)
		}
		if tasks[i].Status != domain.TaskPending {
			t.Errorf("tasks[%d].Status = %s", i, tasks[i].Status)
		}
		if tasks[i].RunID != "r1" {
			t.Errorf("tasks[%d].RunID = %q", i, tasks[i].RunID)
		}
	}
}

func TestPlanTasks_FallbackTask(t *testing.T) {
	p, _ := newTestPlanner("I think we should start with the terrain, then maybe...")

	tasks, err := p.PlanTasks(context.Background(), "p1", "r1", "build a misty harbor")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want exactly 1 fallback task", len(tasks))
	}
	if tasks[0].AssignedTo != domain.Programmer {
		t.Errorf("fallback agent = %s, want programmer", tasks[0].AssignedTo)
	}
	if tasks[0].Description != "build a misty harbor" {
		t.Errorf("fallback description = %q, want full original prompt", tasks[0].Description)
	}
}

func TestPlanTasks_JSONAlternative(t *testing.T) {
	p, _ := newTestPlanner(`{"tasks":[{"title":"Sky","description":"sky","agent":"programmer"}]}`)

	tasks, err := p.PlanTasks(context.Background(), "p1", "r1", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Sky" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestQuickBuild_HouseScenario(t *testing.T) {
	steps, ok := QuickBuild("build a small stone house")
	if !ok {
		t.Fatal("house prompt should match quick build")
	}
	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	want := []string{"sky", "ground", "fog", "house", "lighting", "post-process"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("steps = %v, want %v", names, want)
	}
	for _, s := range steps {
		if !strings.Contains(s.Code, "import unreal") {
			t.Errorf("step %s snippet lacks bootstrap import", s.Name)
		}
	}
}

func TestQuickBuild_ForestAddsVegetation(t *testing.T) {
	steps, ok := QuickBuild("a dark forest with a ruined castle")
	if !ok {
		t.Fatal("expected match")
	}
	var names []string
	for _, s := range steps {
		names = append(names, s.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "castle") || !strings.Contains(joined, "vegetation") {
		t.Errorf("steps = %v", names)
	}
}

func TestQuickBuild_NoMatch(t *testing.T) {
	if _, ok := QuickBuild("simulate a bustling cyberpunk market"); ok {
		t.Error("non-templatable prompt must fall through to the full planner")
	}
}
