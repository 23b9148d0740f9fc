package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventStreamer attaches a websocket client to the order event feed and
// blocks until it disconnects.
type EventStreamer interface {
	Serve(ctx context.Context, conn *websocket.Conn)
}

type StreamHandler struct {
	streamer EventStreamer
	upgrader websocket.Upgrader
}

func NewStreamHandler(streamer EventStreamer) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// StreamOrders godoc
// @Summary      Live order events
// @Description  Upgrades to a websocket that receives every order event as JSON.
// @Tags         orders
// @Success      101
// @Router       /orders/stream [get]
func (h *StreamHandler) StreamOrders(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Info().Err(err).Msg("[order][stream] websocket upgrade failed")
		return
	}
	h.streamer.Serve(c.Request.Context(), conn)
}
