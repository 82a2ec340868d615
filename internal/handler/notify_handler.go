package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	ws "github.com/quizdrill/quizdrill-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// NotifyHandler upgrades clients onto the event broadcast hub.
type NotifyHandler struct {
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *NotifyHandler {
	return &NotifyHandler{
		hub:      hub,
		log:      log.With().Str("component", "notify_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/notifications
// Upgrades to WebSocket and pushes storage errors, abandoned actions,
// timer warnings and sync reports as they happen.
func (h *NotifyHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := h.hub.Register(conn)
	defer client.Close()
	defer h.hub.Unregister(client)

	// Read loop exists only to answer pings and notice disconnects. All
	// replies go through the client so they serialize with broadcasts
	// arriving from other goroutines.
	for {
		var req ws.RequestEnvelope
		if err := client.ReadRequest(&req); err != nil {
			return
		}
		switch req.Action {
		case ws.ActionPing:
			if err := client.Send(ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		default:
			if err := client.SendError("unknown action"); err != nil {
				return
			}
		}
	}
}
