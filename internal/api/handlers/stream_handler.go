package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// StreamHandler pushes record changes to browsers over Server-Sent Events
type StreamHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   atomic.Int64
}

// NewStreamHandler creates a new SSE handler. heartbeat <= 0 uses 30s.
func NewStreamHandler(eventBus providers.EventBus, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{eventBus: eventBus, heartbeat: heartbeat}
}

// StreamFundraises streams created and updated records
// GET /api/stream/fundraises?type=created|updated
func (h *StreamHandler) StreamFundraises(w http.ResponseWriter, r *http.Request) {
	var only entities.FundraiseEventType
	switch r.URL.Query().Get("type") {
	case "":
	case "created":
		only = entities.FundraiseEventTypeCreated
	case "updated":
		only = entities.FundraiseEventTypeUpdated
	default:
		respondWithError(w, http.StatusBadRequest, "type must be created or updated")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := observability.LoggerFromContext(r.Context())

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelFundraiseUpdates)
	if err != nil {
		logger.Error().Err(err).Msg("failed to subscribe to fundraise updates")
		respondWithError(w, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clients := h.clients.Add(1)
	defer h.clients.Add(-1)
	logger.Debug().Int64("clients", clients).Msg("stream client connected")

	h.sendEvent(w, "connected", map[string]interface{}{"timestamp": time.Now().UTC()})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || (only != "" && event.EventType != only) {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// ClientCount returns the number of connected stream clients
func (h *StreamHandler) ClientCount() int {
	return int(h.clients.Load())
}

func (h *StreamHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
