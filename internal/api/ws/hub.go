// Package ws streams project events to WebSocket clients.
package ws

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/events"
)

// Hub forwards broker events to WebSocket connections.
type Hub struct {
	broker events.Broker
}

// NewHub creates a new WebSocket hub on top of the event broker.
func NewHub(broker events.Broker) *Hub {
	return &Hub{broker: broker}
}

// ServeProject handles WebSocket connections for one project's event
// stream. It subscribes to the project's broker channel and forwards
// every payload as a text frame until the client goes away.
func (h *Hub) ServeProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "name")
	if err := domain.ValidateProjectName(project); err != nil {
		http.Error(w, "invalid project name", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	messages, cleanup, err := h.broker.Subscribe(ctx, events.ProjectChannel(project))
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
