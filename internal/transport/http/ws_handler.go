package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// WSHandler streams leaderboard updates to connected clients.
type WSHandler struct {
	results     *app.ResultService
	broadcaster *app.LeaderboardBroadcaster
	upgrader    websocket.Upgrader
}

func NewWSHandler(results *app.ResultService, broadcaster *app.LeaderboardBroadcaster) *WSHandler {
	return &WSHandler{
		results:     results,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

// ServeWS upgrades the connection and pushes a snapshot followed by every
// leaderboard change until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.broadcaster.Subscribe()
	defer cancel()

	if snapshot, err := h.results.Leaderboard(r.Context()); err == nil {
		if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: snapshot}); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Clients send nothing meaningful; reading only detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
