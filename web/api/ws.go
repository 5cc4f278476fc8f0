package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API binds to loopback; browsers on the same host are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatMessage is one chat-log entry pushed over the websocket.
type ChatMessage struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id,omitempty"`
	Speaker   string `json:"speaker"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// chatStreamHandler tails a project's chat log over a websocket.
// Query params: project (required), after (last seen entry id, default 0).
// New entries are pushed as they appear; the poll interval trades latency
// for not hammering the database.
func (s *Server) chatStreamHandler() http.HandlerFunc {
	const pollInterval = time.Second
	const batchLimit = 100

	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			writeError(w, http.StatusBadRequest, "project required")
			return
		}
		afterID, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("chat stream: upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Drain client frames so pongs and close frames are processed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
				entries, err := s.store.ChatSince(projectID, afterID, batchLimit)
				if err != nil {
					log.Printf("chat stream: %v", err)
					return
				}
				for _, e := range entries {
					msg := ChatMessage{
						ID:        e.ID,
						RunID:     e.RunID,
						Speaker:   e.Speaker,
						Message:   e.Message,
						CreatedAt: e.CreatedAt.Format(time.RFC3339),
					}
					if err := conn.WriteJSON(msg); err != nil {
						return
					}
					afterID = e.ID
				}
			}
		}
	}
}
