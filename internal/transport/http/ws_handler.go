package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"quiz-session-service/internal/app"
)

// WSHandler streams session event envelopes to observers over websockets.
// The stream is receive-only for clients: mutations go through the REST
// surface, the socket exists so teacher dashboards see joins, starts, and
// submissions in near-real time.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the event stream route.
func (h *WSHandler) Register(r *mux.Router) {
	r.HandleFunc("/quiz-sessions/{id}/events", h.ServeEvents).Methods(http.MethodGet)
}

// ServeEvents upgrades the request and forwards envelopes until the client
// disconnects or the hub drops the connection for falling behind.
func (h *WSHandler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if r.Header.Get("X-User-ID") == "" {
		http.Error(w, "missing validated identity headers", http.StatusUnauthorized)
		return
	}

	events, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for env := range events {
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("ws write error: %v", err)
				cancel()
				return
			}
		}
		// Channel closed: either the client cancelled or the hub dropped a
		// slow consumer. Tell the client before closing.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed"),
			closeDeadline())
	}()

	// Read loop only services control frames and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}
