package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgescene/scene-crew/internal/domain"
)

type mockStore struct {
	mu      sync.Mutex
	project *domain.Project
	runs    map[string]*domain.Run
	tasks   map[string][]*domain.Task
	chat    []*domain.ChatEntry
}

func newMockStore() *mockStore {
	return &mockStore{
		project: &domain.Project{ID: "p1", Name: "Test"},
		runs:    make(map[string]*domain.Run),
		tasks:   make(map[string][]*domain.Task),
	}
}

func (m *mockStore) GetProject(id string) (*domain.Project, error) {
	if m.project != nil && m.project.ID == id {
		return m.project, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) GetRun(id string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (m *mockStore) ActiveRun(projectID string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ProjectID == projectID && !run.Status.Terminal() {
			return run, nil
		}
	}
	return nil, nil
}

func (m *mockStore) SetSignal(runID string, sig domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return sql.ErrNoRows
	}
	run.Signal = sig
	return nil
}

func (m *mockStore) ListRunTasks(runID string) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[runID], nil
}

func (m *mockStore) ChatSince(projectID string, afterID int64, limit int) ([]*domain.ChatEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatEntry
	for _, e := range m.chat {
		if e.ProjectID == projectID && e.ID > afterID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockRuns struct {
	mu       sync.Mutex
	store    *mockStore
	executed int
}

func (m *mockRuns) StartRun(projectID, prompt string) (*domain.Run, error) {
	run := &domain.Run{
		ID:        "run-1",
		ProjectID: projectID,
		Prompt:    prompt,
		Status:    domain.RunPlanning,
		Signal:    domain.SignalRunning,
		StartedAt: time.Now(),
	}
	m.store.mu.Lock()
	m.store.runs[run.ID] = run
	m.store.mu.Unlock()
	return run, nil
}

func (m *mockRuns) ExecuteRunWith(ctx context.Context, run *domain.Run, disableQuickBuild bool) error {
	m.mu.Lock()
	m.executed++
	m.mu.Unlock()
	return nil
}

func (m *mockRuns) NextTurn(ctx context.Context, projectID, message string) (domain.AgentName, string, error) {
	return domain.Strategist, "Start with the terrain.", nil
}

func newTestServer() (*Server, *mockStore, *mockRuns) {
	st := newMockStore()
	runs := &mockRuns{store: st}
	return NewServer(st, runs, "127.0.0.1:0"), st, runs
}

func TestStartRunHandler(t *testing.T) {
	server, st, _ := newTestServer()
	go server.sseHub.Run()

	req := httptest.NewRequest("POST", "/api/projects/p1/runs",
		strings.NewReader(`{"prompt":"build a lighthouse"}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Prompt != "build a lighthouse" {
		t.Errorf("prompt = %q", resp.Prompt)
	}
	if _, err := st.GetRun(resp.ID); err != nil {
		t.Errorf("run not persisted: %v", err)
	}
}

func TestStartRunHandler_Validation(t *testing.T) {
	server, _, _ := newTestServer()
	go server.sseHub.Run()

	req := httptest.NewRequest("POST", "/api/projects/p1/runs", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty prompt status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/projects/nope/runs",
		strings.NewReader(`{"prompt":"x"}`))
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", w.Code)
	}
}

func TestGetRunHandler(t *testing.T) {
	server, st, _ := newTestServer()
	st.runs["r1"] = &domain.Run{
		ID: "r1", ProjectID: "p1", Prompt: "x",
		Status: domain.RunExecuting, Signal: domain.SignalRunning, StartedAt: time.Now(),
	}
	st.tasks["r1"] = []*domain.Task{
		{ID: "t1", RunID: "r1", Title: "Terrain", AssignedTo: domain.Programmer, Status: domain.TaskCompleted},
	}

	req := httptest.NewRequest("GET", "/api/runs/r1", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RunResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Terrain" {
		t.Errorf("tasks = %+v", resp.Tasks)
	}

	req = httptest.NewRequest("GET", "/api/runs/missing", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", w.Code)
	}
}

func TestSignalHandler(t *testing.T) {
	server, st, _ := newTestServer()
	go server.sseHub.Run()
	st.runs["r1"] = &domain.Run{
		ID: "r1", ProjectID: "p1", Status: domain.RunExecuting,
		Signal: domain.SignalRunning, StartedAt: time.Now(),
	}

	req := httptest.NewRequest("POST", "/api/runs/r1/signal", strings.NewReader(`{"signal":"paused"}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if st.runs["r1"].Signal != domain.SignalPaused {
		t.Errorf("signal = %s, want paused", st.runs["r1"].Signal)
	}

	req = httptest.NewRequest("POST", "/api/runs/r1/signal", strings.NewReader(`{"signal":"banana"}`))
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad signal status = %d, want 400", w.Code)
	}
}

func TestSignalHandler_TerminalRun(t *testing.T) {
	server, st, _ := newTestServer()
	st.runs["r1"] = &domain.Run{
		ID: "r1", ProjectID: "p1", Status: domain.RunCompleted,
		Signal: domain.SignalRunning, StartedAt: time.Now(),
	}

	req := httptest.NewRequest("POST", "/api/runs/r1/signal", strings.NewReader(`{"signal":"stopped"}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("terminal run signal status = %d, want 409", w.Code)
	}
}

func TestTurnHandler(t *testing.T) {
	server, st, _ := newTestServer()

	req := httptest.NewRequest("POST", "/api/projects/p1/turn",
		strings.NewReader(`{"message":"what next?"}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp TurnResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Agent != "strategist" {
		t.Errorf("agent = %q", resp.Agent)
	}

	// Busy project: turns are rejected while a run is active.
	st.runs["r1"] = &domain.Run{ID: "r1", ProjectID: "p1", Status: domain.RunExecuting, StartedAt: time.Now()}
	req = httptest.NewRequest("POST", "/api/projects/p1/turn",
		strings.NewReader(`{"message":"hello"}`))
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("busy turn status = %d, want 409", w.Code)
	}
}

func TestListAgentsHandler(t *testing.T) {
	server, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/api/agents", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var agents []AgentResponse
	json.NewDecoder(w.Body).Decode(&agents)
	if len(agents) != len(domain.AllAgents) {
		t.Errorf("agents = %d, want %d", len(agents), len(domain.AllAgents))
	}
	coders := 0
	for _, a := range agents {
		if a.WritesCode {
			coders++
		}
	}
	if coders != 3 {
		t.Errorf("code-writing agents = %d, want 3", coders)
	}
}

func TestChatStream(t *testing.T) {
	server, st, _ := newTestServer()
	st.chat = []*domain.ChatEntry{
		{ID: 1, ProjectID: "p1", Speaker: "boss", Message: "hello", CreatedAt: time.Now()},
		{ID: 2, ProjectID: "p1", Speaker: "strategist", Message: "hi", CreatedAt: time.Now()},
	}

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat?project=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first ChatMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 || first.Speaker != "boss" {
		t.Errorf("first = %+v", first)
	}
}
