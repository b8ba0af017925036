package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket serves the same change feed as the SSE stream over a
// websocket, one JSON envelope per message.
func (h *httpHandler) handleWebSocket(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	collections := parseCollections(c.Query("collections"))
	merged := h.openStreams(c, collections)

	// Drain reads so close frames and read errors tear the connection down.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event := <-merged:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			envelope := eventEnvelope{
				Collection: event.Collection,
				Kind:       event.Kind,
				NewRecord:  event.NewRecord,
				OldRecord:  event.OldRecord,
				Timestamp:  event.Timestamp.Unix(),
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		}
	}
}
