package domain

import "testing"

func TestLookup_AllKnownAgents(t *testing.T) {
	for _, name := range AllAgents {
		id, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s) error: %v", name, err)
		}
		if id.Name != name {
			t.Errorf("Lookup(%s).Name = %s", name, id.Name)
		}
		if id.Model == "" || id.MaxTokens == 0 || id.PromptRole == "" {
			t.Errorf("Lookup(%s) has incomplete identity: %+v", name, id)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("intern"); err == nil {
		t.Error("Lookup(intern) should fail")
	}
}

func TestParseAgentName(t *testing.T) {
	if name, ok := ParseAgentName("programmer"); !ok || name != Programmer {
		t.Errorf("ParseAgentName(programmer) = %s, %v", name, ok)
	}
	if _, ok := ParseAgentName("Programmer"); ok {
		t.Error("agent names are case-sensitive registry keys")
	}
	if _, ok := ParseAgentName(""); ok {
		t.Error("empty agent name should not parse")
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	terminal := []TaskStatus{TaskCompleted, TaskFailed, TaskSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if TaskPending.Terminal() || TaskInProgress.Terminal() {
		t.Error("pending/in_progress must not be terminal")
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	if !RunStopped.Terminal() || !RunCompleted.Terminal() {
		t.Error("stopped and completed are terminal")
	}
	if RunPaused.Terminal() {
		t.Error("paused is resumable, not terminal")
	}
}
