package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/audit"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

// EventsHandler streams knowledge events (deep search executions, indexing)
// to websocket subscribers as they are recorded.
type EventsHandler struct {
	audit *audit.Writer
}

func NewEventsHandler(auditWriter *audit.Writer) *EventsHandler {
	return &EventsHandler{
		audit: auditWriter,
	}
}

func (h *EventsHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Event stream connection established")

	events, cancel := h.audit.Subscribe()
	defer cancel()
	defer c.Close()

	// Reader goroutine only detects disconnects; clients don't send messages.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("Event stream connection closed")
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			msg := map[string]interface{}{
				"type":      event.Type,
				"orgId":     event.OrgID,
				"payload":   event.Payload,
				"createdAt": event.CreatedAt,
			}

			if err := c.WriteJSON(msg); err != nil {
				logger.Warn("Failed to write event to stream", zap.Error(err))
				return
			}
		}
	}
}
