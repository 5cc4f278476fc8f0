package orchestrator

import (
	"context"
	"testing"

	"github.com/forgescene/scene-crew/internal/domain"
)

func TestRouteTurn(t *testing.T) {
	cases := []struct {
		message string
		want    domain.AgentName
	}{
		{"can you fix the spawn script?", domain.Programmer},
		{"rework the castle layout", domain.Architect},
		{"who is the lighthouse keeper? give him a backstory", domain.NarrativeDesigner},
		{"please review what we built so far", domain.Reviewer},
		{"what music fits this valley?", domain.Composer},
		{"what should we do next?", domain.Strategist},
	}
	for _, c := range cases {
		if got := RouteTurn(c.message); got != c.want {
			t.Errorf("RouteTurn(%q) = %s, want %s", c.message, got, c.want)
		}
	}
}

func TestNextTurn_RoutesAndLogs(t *testing.T) {
	st := newMemStore()
	completer := newFakeCompleter(map[domain.AgentName][]string{
		domain.Composer: {"A slow cello theme over wind ambience."},
	})
	o := newTestOrchestrator(st, completer, &fakeExecutor{})

	agent, response, err := o.NextTurn(context.Background(), "p1", "what music fits this valley?")
	if err != nil {
		t.Fatal(err)
	}
	if agent != domain.Composer {
		t.Errorf("agent = %s, want composer", agent)
	}
	if response != "A slow cello theme over wind ambience." {
		t.Errorf("response = %q", response)
	}

	if len(st.chat) != 2 {
		t.Fatalf("chat entries = %d, want boss message plus reply", len(st.chat))
	}
	if st.chat[0].Speaker != "boss" || st.chat[1].Speaker != string(domain.Composer) {
		t.Errorf("speakers = %s, %s", st.chat[0].Speaker, st.chat[1].Speaker)
	}
}
