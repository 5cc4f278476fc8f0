package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forgescene/scene-crew/internal/domain"
	"github.com/forgescene/scene-crew/internal/store"
)

// Store is the persistence surface the API reads and writes.
type Store interface {
	GetProject(id string) (*domain.Project, error)
	GetRun(id string) (*domain.Run, error)
	ActiveRun(projectID string) (*domain.Run, error)
	SetSignal(runID string, sig domain.Signal) error
	ListRunTasks(runID string) ([]*domain.Task, error)
	ChatSince(projectID string, afterID int64, limit int) ([]*domain.ChatEntry, error)
}

var _ Store = (*store.Store)(nil)

// Runs is the orchestration surface the API drives.
// *orchestrator.Orchestrator satisfies it.
type Runs interface {
	StartRun(projectID, prompt string) (*domain.Run, error)
	ExecuteRunWith(ctx context.Context, run *domain.Run, disableQuickBuild bool) error
	NextTurn(ctx context.Context, projectID, message string) (domain.AgentName, string, error)
}

// Server is the HTTP API server. Runs started through it execute in their
// own goroutine; the handlers return as soon as the run record exists.
type Server struct {
	store  Store
	runs   Runs
	addr   string
	mux    *http.ServeMux
	sseHub *SSEHub
}

// NewServer creates an API server bound to addr.
func NewServer(st Store, runs Runs, addr string) *Server {
	s := &Server{
		store:  st,
		runs:   runs,
		addr:   addr,
		mux:    http.NewServeMux(),
		sseHub: NewSSEHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/projects/{id}/runs", s.startRunHandler())
	s.mux.HandleFunc("POST /api/projects/{id}/turn", s.turnHandler())
	s.mux.HandleFunc("GET /api/runs/{id}", s.getRunHandler())
	s.mux.HandleFunc("POST /api/runs/{id}/signal", s.signalHandler())
	s.mux.HandleFunc("GET /api/agents", s.listAgentsHandler())
	s.mux.HandleFunc("GET /api/events", s.sseHandler())
	s.mux.HandleFunc("GET /api/chat", s.chatStreamHandler())
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.sseHub.Run()

	srv := &http.Server{Addr: s.addr, Handler: s.mux}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the route mux, used by tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Broadcast sends an event to all SSE clients.
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": fmt.Sprintf(format, args...)})
}
