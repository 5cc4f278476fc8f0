package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/forgescene/scene-crew/internal/domain"
)

// RunResponse is the API shape of a run plus its task list.
type RunResponse struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Prompt     string         `json:"prompt"`
	Status     string         `json:"status"`
	Signal     string         `json:"signal"`
	TaskIndex  int            `json:"task_index"`
	Summary    string         `json:"summary,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt *string        `json:"finished_at,omitempty"`
	Tasks      []TaskResponse `json:"tasks,omitempty"`
}

// TaskResponse is the API shape of one planned task.
type TaskResponse struct {
	ID          string `json:"id"`
	OrderIndex  int    `json:"order_index"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assigned_to"`
	Status      string `json:"status"`
	Retries     int    `json:"retries,omitempty"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AgentResponse is the API shape of one registry entry.
type AgentResponse struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	WritesCode bool   `json:"writes_code"`
}

// TurnResponse is the API shape of one routed conversational exchange.
type TurnResponse struct {
	Agent    string `json:"agent"`
	Response string `json:"response"`
}

func runToResponse(run *domain.Run, tasks []*domain.Task) RunResponse {
	resp := RunResponse{
		ID:        run.ID,
		ProjectID: run.ProjectID,
		Prompt:    run.Prompt,
		Status:    string(run.Status),
		Signal:    string(run.Signal),
		TaskIndex: run.TaskIndex,
		Summary:   run.Summary,
		StartedAt: run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		t := run.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &t
	}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(task))
	}
	return resp
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		OrderIndex:  t.OrderIndex,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  string(t.AssignedTo),
		Status:      string(t.Status),
		Retries:     t.Retries,
		Result:      t.Result,
		Error:       t.Error,
	}
}

func (s *Server) startRunHandler() http.HandlerFunc {
	type request struct {
		Prompt     string `json:"prompt"`
		QuickBuild *bool  `json:"quick_build"` // nil means allowed
	}

	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.PathValue("id")

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: %v", err)
			return
		}
		if req.Prompt == "" {
			writeError(w, http.StatusBadRequest, "prompt required")
			return
		}

		if _, err := s.store.GetProject(projectID); err != nil {
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "project not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}

		run, err := s.runs.StartRun(projectID, req.Prompt)
		if err != nil {
			writeError(w, http.StatusConflict, "%v", err)
			return
		}

		// The run outlives this request.
		disableQuick := req.QuickBuild != nil && !*req.QuickBuild
		go func() {
			if err := s.runs.ExecuteRunWith(context.Background(), run, disableQuick); err == nil {
				s.Broadcast(SSEEvent{Type: "run_finished", Data: map[string]string{"run_id": run.ID}})
			}
		}()

		s.Broadcast(SSEEvent{Type: "run_started", Data: runToResponse(run, nil)})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(runToResponse(run, nil))
	}
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.store.GetRun(r.PathValue("id"))
		if err != nil {
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}

		tasks, err := s.store.ListRunTasks(run.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}

		writeJSON(w, runToResponse(run, tasks))
	}
}

func (s *Server) signalHandler() http.HandlerFunc {
	type request struct {
		Signal string `json:"signal"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.PathValue("id")

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: %v", err)
			return
		}

		sig := domain.Signal(req.Signal)
		switch sig {
		case domain.SignalRunning, domain.SignalPaused, domain.SignalStopped:
		default:
			writeError(w, http.StatusBadRequest, "unknown signal %q", req.Signal)
			return
		}

		run, err := s.store.GetRun(runID)
		if err != nil {
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		if run.Status.Terminal() {
			writeError(w, http.StatusConflict, "run is %s; signals have no effect", run.Status)
			return
		}

		if err := s.store.SetSignal(runID, sig); err != nil {
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}

		s.Broadcast(SSEEvent{Type: "signal_set", Data: map[string]string{"run_id": runID, "signal": req.Signal}})
		writeJSON(w, map[string]string{"run_id": runID, "signal": req.Signal})
	}
}

func (s *Server) turnHandler() http.HandlerFunc {
	type request struct {
		Message string `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.PathValue("id")

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: %v", err)
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message required")
			return
		}

		// A turn is conversational, not a run: it must not fight an active
		// run's task dispatching for the chat context.
		if active, err := s.store.ActiveRun(projectID); err == nil && active != nil {
			writeError(w, http.StatusConflict, "project busy with run %s", active.ID)
			return
		}

		agent, response, err := s.runs.NextTurn(r.Context(), projectID, req.Message)
		if err != nil {
			writeError(w, http.StatusBadGateway, "%v", err)
			return
		}

		writeJSON(w, TurnResponse{Agent: string(agent), Response: response})
	}
}

func (s *Server) listAgentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := make([]AgentResponse, 0, len(domain.AllAgents))
		for _, name := range domain.AllAgents {
			identity, err := domain.Lookup(name)
			if err != nil {
				continue
			}
			resp = append(resp, AgentResponse{
				Name:       string(identity.Name),
				Role:       identity.Role,
				Model:      identity.Model,
				WritesCode: identity.WritesCode,
			})
		}
		writeJSON(w, resp)
	}
}
