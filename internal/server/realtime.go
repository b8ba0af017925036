package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell/internal/content"
	"github.com/inkwellhq/inkwell/internal/feed"
)

const (
	realtimeEventChange    = "change"
	realtimeEventHeartbeat = "heartbeat"
	heartbeatInterval      = 30 * time.Second
)

type eventEnvelope struct {
	Collection string      `json:"collection"`
	Kind       feed.Kind   `json:"kind"`
	NewRecord  feed.Record `json:"new_record,omitempty"`
	OldRecord  feed.Record `json:"old_record,omitempty"`
	Timestamp  int64       `json:"timestamp_s"`
}

func parseCollections(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{content.CollectionPosts}
	}
	var collections []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == content.CollectionPosts || name == content.CollectionComments {
			collections = append(collections, name)
		}
	}
	if len(collections) == 0 {
		return []string{content.CollectionPosts}
	}
	return collections
}

// openStreams subscribes to each requested collection and fans events into a
// single channel. Per-collection ordering is preserved; no ordering exists
// across collections.
func (h *httpHandler) openStreams(c *gin.Context, collections []string) <-chan feed.Event {
	merged := make(chan feed.Event, 16)
	ctx := c.Request.Context()
	for _, collection := range collections {
		stream, _ := h.feed.Subscribe(ctx, collection)
		go func(stream <-chan feed.Event) {
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}(stream)
	}
	return merged
}

func (h *httpHandler) handleStream(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	collections := parseCollections(c.Query("collections"))
	merged := h.openStreams(c, collections)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.Writer.WriteString("event: " + realtimeEventHeartbeat + "\ndata: {}\n\n")
			flusher.Flush()
		case event := <-merged:
			payload, err := json.Marshal(eventEnvelope{
				Collection: event.Collection,
				Kind:       event.Kind,
				NewRecord:  event.NewRecord,
				OldRecord:  event.OldRecord,
				Timestamp:  event.Timestamp.Unix(),
			})
			if err != nil {
				continue
			}
			c.Writer.WriteString("event: " + realtimeEventChange + "\ndata: " + string(payload) + "\n\n")
			flusher.Flush()
		}
	}
}
