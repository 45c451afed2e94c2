package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
	"github.com/prisma-glow/deepsearch/internal/storage/sqlite"
	"github.com/prisma-glow/deepsearch/pkg/logger"
)

const EventTypeDeepSearch = "DEEP_SEARCH"

type RecordedSource struct {
	SourceID          string `json:"sourceId"`
	SourceName        string `json:"sourceName"`
	VerificationLevel string `json:"verificationLevel"`
}

// SearchRecord is the execution log payload persisted per deep search.
type SearchRecord struct {
	AgentID     string           `json:"agentId"`
	Query       string           `json:"query"`
	ResultCount int              `json:"resultCount"`
	Sources     []RecordedSource `json:"sources"`
	TriggeredBy string           `json:"triggeredBy"`
}

// Writer persists knowledge events and fans them out to live subscribers.
type Writer struct {
	db *sqlite.Client

	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]chan models.KnowledgeEvent
}

func NewWriter(db *sqlite.Client) *Writer {
	return &Writer{
		db:          db,
		subscribers: make(map[int]chan models.KnowledgeEvent),
	}
}

// RecordDeepSearch writes the execution log entry for a completed search.
// Failures are logged and swallowed: audit logging never fails a search that
// already produced results.
func (w *Writer) RecordDeepSearch(orgID string, record SearchRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		logger.Warn("Failed to marshal search record", zap.Error(err))
		return
	}

	event := models.KnowledgeEvent{
		OrgID:     orgID,
		Type:      EventTypeDeepSearch,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}

	if err := w.db.InsertKnowledgeEvent(context.Background(), &event); err != nil {
		logger.Warn("Failed to record deep search event",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return
	}

	w.broadcast(event)
}

// Subscribe registers a live event channel. The returned cancel func must be
// called when the subscriber goes away. Slow subscribers drop events rather
// than block the writer.
func (w *Writer) Subscribe() (<-chan models.KnowledgeEvent, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++

	ch := make(chan models.KnowledgeEvent, 16)
	w.subscribers[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (w *Writer) broadcast(event models.KnowledgeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
