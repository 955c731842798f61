package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	chatModels "parley/internal/domain/models/chat"
	"parley/internal/httputil"
	"parley/internal/service/completion"
)

// keepaliveInterval is how often SSE comment lines are sent to hold idle
// connections open through proxies.
const keepaliveInterval = 15 * time.Second

// SSEHandler streams message generation events via Server-Sent Events
type SSEHandler struct {
	registry *completion.ExecutorRegistry
	logger   *slog.Logger
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(registry *completion.ExecutorRegistry, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{
		registry: registry,
		logger:   logger,
	}
}

// StreamMessage handles GET /api/messages/{id}/stream.
// Connecting mid-stream replays persisted parts first (catchup), then live
// events; connecting after the stream ended replays everything plus the
// terminal event and closes.
func (h *SSEHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := PathParam(w, r, "id", "message id")
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h.logger.Info("SSE connection request",
		"message_id", messageID,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	executor := h.registry.Get(messageID)
	if executor == nil {
		// Connection is already committed as SSE; report via an event
		event, _ := chatModels.NewMessageErrorEvent(messageID, "no active stream for this message", false)
		fmt.Fprint(w, event)
		flusher.Flush()
		return
	}

	clientID := uuid.New().String()
	eventChan := executor.AddClient(clientID)
	defer executor.RemoveClient(clientID)

	// Catchup writes into the same channel the live stream uses, keeping
	// event order intact for this client
	if err := executor.HandleReconnection(r.Context(), clientID); err != nil {
		h.logger.Warn("catchup failed, client will receive live events only",
			"message_id", messageID,
			"client_id", clientID,
			"error", err,
		)
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected",
				"message_id", messageID,
				"client_id", clientID,
			)
			return

		case event, open := <-eventChan:
			if !open {
				// Stream reached a terminal state
				h.logger.Debug("event channel closed, ending stream",
					"message_id", messageID,
					"client_id", clientID,
				)
				return
			}
			fmt.Fprint(w, event)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// InterruptMessage handles POST /api/messages/{id}/interrupt, cancelling an
// in-flight stream. Whatever was generated before the interrupt stays
// persisted.
func (h *SSEHandler) InterruptMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := PathParam(w, r, "id", "message id")
	if !ok {
		return
	}

	executor := h.registry.Get(messageID)
	if executor == nil {
		httputil.RespondError(w, http.StatusNotFound, "no active stream for this message")
		return
	}

	executor.Interrupt()

	h.logger.Info("message stream interrupted by client",
		"message_id", messageID,
	)

	w.WriteHeader(http.StatusNoContent)
}
