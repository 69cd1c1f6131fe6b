package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/safewatch/signaling/internal/signal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Signaling returns the websocket endpoint. Rooms are implicit: a session id
// is whatever string the clients agreed on, no pre-creation step exists.
func Signaling(hub *signal.Hub, correlator *signal.Correlator, maxMessageBytes int64, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		conn.SetReadLimit(maxMessageBytes)

		client := signal.NewClient(uuid.New().String(), hub, correlator, conn, log)
		hub.Connect(client)
		go client.Run()
	}
}
