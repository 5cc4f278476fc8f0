package consult

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/llm"
)

// Audit is the append-only trail consultations are mirrored into as they
// occur, so a caller that fails mid-round still has partial visibility.
type Audit interface {
	AppendChat(entry *domain.ChatEntry) error
}

// defaultConsultants maps each requesting agent to its standing reviewers.
var defaultConsultants = map[domain.AgentName][]domain.AgentName{
	domain.Strategist:        {domain.Architect, domain.Reviewer},
	domain.Architect:         {domain.Programmer, domain.Reviewer},
	domain.Programmer:        {domain.Reviewer, domain.Architect},
	domain.NarrativeDesigner: {domain.Strategist},
	domain.Reviewer:          {domain.Programmer},
	domain.Composer:          {domain.NarrativeDesigner},
}

// topic keyword groups that augment the consultant set
var (
	codeWords      = []string{"code", "script", "python", "execute", "spawn", "api", "bug", "error"}
	archWords      = []string{"architecture", "layout", "structure", "composition", "placement", "design"}
	narrativeWords = []string{"story", "lore", "narrative", "character", "quest", "dialogue"}
)

// Service runs bounded, best-effort peer-review rounds.
type Service struct {
	completer      llm.Completer
	audit          Audit
	maxConsultants int
	detailsMaxLen  int
}

// New creates a consultation service. maxConsultants <= 0 defaults to 3.
func New(completer llm.Completer, audit Audit, maxConsultants int) *Service {
	if maxConsultants <= 0 {
		maxConsultants = 3
	}
	return &Service{
		completer:      completer,
		audit:          audit,
		maxConsultants: maxConsultants,
		detailsMaxLen:  1000,
	}
}

// SelectConsultants derives the consultant set for a requester and topic:
// the static default map, augmented by topic keywords, minus the requester,
// deduplicated, capped at maxConsultants in insertion order.
func (s *Service) SelectConsultants(requester domain.AgentName, topic string) []domain.AgentName {
	var ordered []domain.AgentName
	seen := map[domain.AgentName]bool{requester: true}

	add := func(names ...domain.AgentName) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				ordered = append(ordered, n)
			}
		}
	}

	add(defaultConsultants[requester]...)

	lower := strings.ToLower(topic)
	if containsAny(lower, codeWords) {
		add(domain.Programmer, domain.Reviewer)
	}
	if containsAny(lower, archWords) {
		add(domain.Architect)
	}
	if containsAny(lower, narrativeWords) {
		add(domain.NarrativeDesigner)
	}

	if len(ordered) > s.maxConsultants {
		ordered = ordered[:s.maxConsultants]
	}
	return ordered
}

// Consult runs one peer-review round. Each consultant is a sequential
// blocking completion call; a single consultant's failure is logged and
// skipped, never aborting the remaining consultants. An empty consultant
// set returns immediately with no calls.
func (s *Service) Consult(ctx context.Context, projectID string, requester domain.AgentName, topic, details, contextText string) (*domain.ConsultationRound, error) {
	round := &domain.ConsultationRound{
		Requester:   requester,
		Topic:       topic,
		Details:     details,
		Consultants: s.SelectConsultants(requester, topic),
	}

	if len(round.Consultants) == 0 {
		return round, nil
	}

	excerpt := details
	if len(excerpt) > s.detailsMaxLen {
		// cut on a rune boundary
		cut := s.detailsMaxLen
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "…"
	}

	for _, name := range round.Consultants {
		identity, err := domain.Lookup(name)
		if err != nil {
			log.Printf("consultation: %v", err)
			continue
		}

		prompt := fmt.Sprintf(
			"Your teammate %s asks for your review.\nTopic: %s\n\n%s\n\nGive a short, concrete opinion from your role's perspective.",
			requester, topic, excerpt)

		s.append(projectID, string(requester), fmt.Sprintf("Consulting %s on: %s", name, topic))

		response, err := s.completer.Complete(ctx, identity, contextText, []llm.Message{{Role: "user", Content: prompt}})
		if err != nil {
			log.Printf("consultant %s failed: %v", name, err)
			s.append(projectID, "orchestrator", fmt.Sprintf("Consultant %s unavailable: %v", name, err))
			continue
		}

		round.Responses = append(round.Responses, domain.ConsultResponse{Consultant: name, Response: response})
		s.append(projectID, string(name), response)
	}

	return round, nil
}

func (s *Service) append(projectID, speaker, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AppendChat(&domain.ChatEntry{ProjectID: projectID, Speaker: speaker, Message: message}); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}

// ShouldAutoConsult inspects a completed agent response for signals that an
// unscheduled consultation is warranted. It is a trigger heuristic only.
func ShouldAutoConsult(agent domain.AgentName, response string) (bool, string) {
	lower := strings.ToLower(response)
	switch agent {
	case domain.Programmer:
		if strings.Contains(response, "```") {
			return true, "code review before execution"
		}
	case domain.Architect:
		if containsAny(lower, archWords) {
			return true, "architecture review"
		}
	case domain.NarrativeDesigner:
		for _, w := range []string{"death", "war", "destroy", "betray", "ending"} {
			if strings.Contains(lower, w) {
				return true, "major narrative event review"
			}
		}
	}
	return false, ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
